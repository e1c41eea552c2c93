package llb

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/DiverOfDark/peelbox/src/digest"
	"github.com/DiverOfDark/peelbox/src/fsscan"
	"github.com/DiverOfDark/peelbox/src/specfmt"
	"github.com/DiverOfDark/peelbox/src/wire"
)

// DefaultBuildBase and DefaultRuntimeBase are the Source identifiers used
// when a caller doesn't override them via Builder.SetImages. Both point at
// the same small, glibc-based distro so runtime-stage package installs
// resolve against a known package manager.
const (
	DefaultBuildBase   = "docker-image://docker.io/library/debian:bookworm-slim"
	DefaultRuntimeBase = "docker-image://docker.io/library/debian:bookworm-slim"
)

// Compile runs the Peelbox graph-construction strategy against spec and
// returns the serialized Definition (spec.md §4.1 "PeelboxStrategy").
//
// The strategy lays out a fixed eight-step graph: a Source op per base
// image, a Source op for the local build context, an Exec installing the
// build stage's packages, a chained Exec per build command (each carrying
// the context forward at /build), an Exec installing the runtime stage's
// packages into a clean root, a Merge of that root with the glibc runtime
// layer, a transfer Exec that copies the requested artifacts into a fresh
// /out mount, and a final Reference aliasing that mount as the image's
// root filesystem.
func Compile(b *Builder, spec specfmt.BuildSpec) ([]byte, error) {
	if b.contextPath == "" {
		return nil, fmt.Errorf("llb: context path not set")
	}

	matcher := fsscan.NewMatcher(b.contextPath)
	localUnique, err := fsscan.HashContext(b.contextPath, matcher)
	if err != nil {
		return nil, fmt.Errorf("hashing local context: %w", err)
	}

	_, buildBaseDg, err := b.AddOp(wire.Op{
		Kind:   wire.KindSource,
		Source: &wire.SourceOp{Identifier: b.buildBase},
	})
	if err != nil {
		return nil, err
	}

	_, runtimeBaseDg, err := b.AddOp(wire.Op{
		Kind:   wire.KindSource,
		Source: &wire.SourceOp{Identifier: b.runtimeBase},
	})
	if err != nil {
		return nil, err
	}

	_, localDg, err := b.AddOp(wire.Op{
		Kind: wire.KindSource,
		Source: &wire.SourceOp{
			Identifier: "local://" + b.contextName,
			Attrs: map[string]string{
				"local.unique":          string(localUnique),
				"local.excludepatterns": strings.Join(matcher.Patterns(), "\n"),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	// Build stage: install packages on the build base, then chain commands.
	buildRootDg := buildBaseDg
	if len(spec.Build.Packages) > 0 {
		buildRootDg, err = b.addPackageInstallExec(buildRootDg, packageInstallArgs(spec.Build.Packages))
		if err != nil {
			return nil, err
		}
	}

	// buildResultDg is the rootfs of whatever ran last in the build stage
	// (installed packages, or the last command). contextCarried reports
	// whether that digest also exposes the persisted context at output 1
	// (true once at least one command has run, spec.md §4.1 step 4).
	buildResultDg := buildRootDg
	contextCarried := false
	for i, cmd := range spec.Build.Commands {
		var inputs []wire.Input
		if !contextCarried {
			inputs = []wire.Input{
				{Digest: string(buildResultDg), OutputIndex: 0},
				{Digest: string(localDg), OutputIndex: 0},
			}
		} else {
			inputs = []wire.Input{
				{Digest: string(buildResultDg), OutputIndex: 0},
				{Digest: string(buildResultDg), OutputIndex: 1},
			}
		}

		mounts := []wire.Mount{
			{InputIdx: 0, OutputIdx: 0, Dest: "/", Type: wire.MountBind},
			{InputIdx: 1, OutputIdx: 1, Dest: "/build", Type: wire.MountBind},
			{InputIdx: -1, OutputIdx: -1, Dest: "/tmp", Type: wire.MountTmpfs, TmpfsOpt: &wire.TmpfsOpt{}},
		}
		for _, p := range spec.Build.Cache {
			mounts = append(mounts, cacheMount(b.projectName, p))
		}

		_, dg, err := b.AddOp(wire.Op{
			Kind:   wire.KindExec,
			Inputs: inputs,
			Exec: &wire.ExecOp{
				Meta:   buildMeta([]string{"/bin/sh", "-c", "cd /build && " + cmd}, spec.Build.Env),
				Mounts: mounts,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("build command %d: %w", i, err)
		}
		buildResultDg = dg
		contextCarried = true
	}

	// Runtime stage: a clean root, optionally with packages installed via
	// --root, scrubbed of the package manager itself.
	runtimeRootDg := runtimeBaseDg
	if len(spec.Runtime.Packages) > 0 {
		runtimeRootDg, err = b.addRuntimePackageInstallExec(runtimeBaseDg, spec.Runtime.Packages)
		if err != nil {
			return nil, err
		}
	}

	mergeInputs := []wire.MergeInput{{Input: wire.Input{Digest: string(runtimeBaseDg), OutputIndex: 0}}}
	if len(spec.Runtime.Packages) > 0 {
		mergeInputs = append(mergeInputs, wire.MergeInput{Input: wire.Input{Digest: string(runtimeRootDg), OutputIndex: 0}})
	}
	_, mergeDg, err := b.AddOp(wire.Op{
		Kind:  wire.KindMerge,
		Merge: &wire.MergeOp{Inputs: mergeInputs},
	})
	if err != nil {
		return nil, err
	}

	finalDg := mergeDg
	if len(spec.Runtime.Copy) > 0 {
		finalDg, err = b.addTransferExec(buildResultDg, contextCarried, localDg, mergeDg, spec.Runtime.Copy, spec.Build.Cache)
		if err != nil {
			return nil, err
		}
	}

	if _, _, err := b.AddOp(wire.Op{
		Kind:   wire.KindReference,
		Inputs: []wire.Input{{Digest: string(finalDg), OutputIndex: 0}},
	}); err != nil {
		return nil, err
	}

	return b.Definition()
}

// addPackageInstallExec emits the build stage's package-install Exec
// (spec.md §4.1 step 3): a scratch tmpfs mount for /tmp, a bind-mount of
// the base at /, no context.
func (b *Builder) addPackageInstallExec(baseDg digest.Digest, args []string) (digest.Digest, error) {
	_, dg, err := b.AddOp(wire.Op{
		Kind:   wire.KindExec,
		Inputs: []wire.Input{{Digest: string(baseDg), OutputIndex: 0}},
		Exec: &wire.ExecOp{
			Meta: buildMeta(args, nil),
			Mounts: []wire.Mount{
				{InputIdx: 0, OutputIdx: 0, Dest: "/", Type: wire.MountBind},
				{InputIdx: -1, OutputIdx: -1, Dest: "/tmp", Type: wire.MountTmpfs, TmpfsOpt: &wire.TmpfsOpt{}},
			},
		},
	})
	return dg, err
}

// addRuntimePackageInstallExec emits the runtime stage's package-install
// Exec (spec.md §4.1 step 5): the runtime base mounted read-only at /,
// a fresh /runtime-root mount that captures output 0, and a scratch /tmp.
// The installed packages land under /runtime-root via the package
// manager's --root flag, and the package manager itself is then scrubbed
// from that root so the clean runtime layer carries no package-manager
// binary (spec.md §8 scenario 4).
func (b *Builder) addRuntimePackageInstallExec(runtimeBaseDg digest.Digest, pkgs []string) (digest.Digest, error) {
	_, dg, err := b.AddOp(wire.Op{
		Kind:   wire.KindExec,
		Inputs: []wire.Input{{Digest: string(runtimeBaseDg), OutputIndex: 0}},
		Exec: &wire.ExecOp{
			Meta: buildMeta(runtimePackageInstallArgs(pkgs), nil),
			Mounts: []wire.Mount{
				{InputIdx: 0, OutputIdx: -1, Dest: "/", Readonly: true, Type: wire.MountBind},
				{InputIdx: -1, OutputIdx: 0, Dest: "/runtime-root", Type: wire.MountBind},
				{InputIdx: -1, OutputIdx: -1, Dest: "/tmp", Type: wire.MountTmpfs, TmpfsOpt: &wire.TmpfsOpt{}},
			},
		},
	})
	return dg, err
}

// addTransferExec emits the final transfer Exec (spec.md §4.1 step 7):
// the build result, the merged runtime, and the source context are all
// mounted read-only; the copy script seeds /out from the merged runtime
// and then layers each requested artifact on top; the build cache paths
// are re-mounted so artifacts produced into them during the build remain
// visible to the copy script.
func (b *Builder) addTransferExec(buildResultDg digest.Digest, buildCarriesContext bool, contextDg digest.Digest, mergeDg digest.Digest, copies []specfmt.CopyEntry, cachePaths []string) (digest.Digest, error) {
	contextInputDg := contextDg
	var contextOutput int64
	if buildCarriesContext {
		contextInputDg = buildResultDg
		contextOutput = 1
	}

	inputs := []wire.Input{
		{Digest: string(buildResultDg), OutputIndex: 0},              // idx 0: build result, readonly at /
		{Digest: string(contextInputDg), OutputIndex: contextOutput}, // idx 1: source context, readonly at /build
		{Digest: string(mergeDg), OutputIndex: 0},                    // idx 2: merged runtime, readonly at /runtime-base
	}
	mounts := []wire.Mount{
		{InputIdx: 0, OutputIdx: -1, Dest: "/", Readonly: true, Type: wire.MountBind},
		{InputIdx: 1, OutputIdx: -1, Dest: "/build", Readonly: true, Type: wire.MountBind},
		{InputIdx: 2, OutputIdx: -1, Dest: "/runtime-base", Readonly: true, Type: wire.MountBind},
		{InputIdx: -1, OutputIdx: 0, Dest: "/out", Type: wire.MountBind},
	}
	for _, p := range cachePaths {
		mounts = append(mounts, cacheMount(b.projectName, p))
	}

	_, dg, err := b.AddOp(wire.Op{
		Kind:   wire.KindExec,
		Inputs: inputs,
		Exec: &wire.ExecOp{
			Meta:   transferMeta(copies),
			Mounts: mounts,
		},
	})
	return dg, err
}

// cacheMount builds a cache-type Mount for path p, normalizing a relative
// path to /build/<path> the way build commands see it (spec.md §4.1 step
// 4's context mount). The cache id is CacheID of p as given, not of the
// /build/ destination, so a relative path and the same path written with
// a leading slash share one cache id although they mount at different
// destinations.
func cacheMount(projectName, p string) wire.Mount {
	dest := p
	if !strings.HasPrefix(dest, "/") {
		dest = "/build/" + dest
	}
	return wire.Mount{
		InputIdx:  -1,
		OutputIdx: -1,
		Dest:      dest,
		Type:      wire.MountCache,
		CacheOpt:  &wire.CacheOpt{ID: CacheID(projectName, p), Sharing: wire.CacheShared},
	}
}

// buildMeta sorts env into "K=V" entries and injects SOURCE_DATE_EPOCH=0
// (spec.md §4.1 "env sorting + SOURCE_DATE_EPOCH=0 injection") so two
// compiles of the same spec always produce byte-identical Meta encodings
// regardless of map iteration order.
func buildMeta(args []string, env map[string]string) wire.Meta {
	merged := make(map[string]string, len(env)+1)
	merged["SOURCE_DATE_EPOCH"] = "0"
	for k, v := range env {
		merged[k] = v
	}
	entries := make([]string, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, k+"="+v)
	}
	slices.Sort(entries)
	return wire.Meta{Args: args, Env: entries, Cwd: "/", User: "root"}
}

func packageInstallArgs(pkgs []string) []string {
	sorted := append([]string(nil), pkgs...)
	sort.Strings(sorted)
	cmd := "apt-get update && apt-get install -y --no-install-recommends " + strings.Join(sorted, " ")
	return []string{"/bin/sh", "-c", cmd}
}

// runtimePackageInstallArgs installs pkgs into /runtime-root using the
// package manager's --root flag, then scrubs the package manager's own
// binaries and metadata from that root so the clean runtime layer carries
// no package-manager binary under any path.
func runtimePackageInstallArgs(pkgs []string) []string {
	sorted := append([]string(nil), pkgs...)
	sort.Strings(sorted)
	cmd := strings.Join([]string{
		"mkdir -p /runtime-root/var/lib/dpkg /runtime-root/etc/apt",
		"apt-get update",
		"apt-get install -y --no-install-recommends --root=/runtime-root " + strings.Join(sorted, " "),
		"rm -rf /runtime-root/var/lib/apt /runtime-root/var/cache/apt " +
			"/runtime-root/usr/bin/apt* /runtime-root/usr/bin/dpkg* /runtime-root/usr/sbin/dpkg*",
	}, " && ")
	return []string{"/bin/sh", "-c", cmd}
}

func transferMeta(copies []specfmt.CopyEntry) wire.Meta {
	parts := []string{"mkdir -p /out", "cp -a /runtime-base/. /out/"}
	for _, c := range copies {
		src := c.From
		if !strings.HasPrefix(src, "/") {
			src = "/build/" + src
		}
		parts = append(parts, fmt.Sprintf("mkdir -p $(dirname /out/%s) && cp -a %s /out/%s", c.To, src, c.To))
	}
	return wire.Meta{
		Args: []string{"/bin/sh", "-c", strings.Join(parts, " && ")},
		Env:  []string{"SOURCE_DATE_EPOCH=0"},
		Cwd:  "/",
		User: "root",
	}
}
