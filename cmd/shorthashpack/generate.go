package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/packfile"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/config"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/env"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/graphbuild"
	"github.com/not-an-aardvark/every-git-commit-shorthash/internal/progress"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newGenerateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate the pack and index (the default action)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, flags)
		},
	}
	return cmd
}

// runGenerate loads the run configuration, drives the graph orchestrator
// against a real on-disk pack/index pair (or an in-memory dry run), and
// prints a summary. Grounded on cmd/git-go/init.go's load-config-then-act
// shape.
func runGenerate(cmd *cobra.Command, flags *globalFlags) error {
	e := env.NewFromOs()
	quiet := e.Has("SHORTHASHPACK_QUIET")

	cfg, err := config.Load(afero.NewOsFs(), flags.ConfigPath)
	if err != nil {
		return xerrors.Errorf("could not load config: %w", err)
	}
	if flags.K != 0 {
		cfg.Run.K = flags.K
	}
	if flags.OutputDir != "" {
		cfg.Run.OutputDir = flags.OutputDir
	}
	if flags.DryRun {
		cfg.Run.DryRun = true
	}

	tpl := cfg.CommitTemplate()
	start := time.Now()

	if cfg.Run.DryRun {
		result, err := runDryRun(tpl, cfg.Run.K)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d roots, %d mid merges, tip=%s, elapsed=%s\n",
				result.RootCount, result.MidMergeCount, result.Tip.String(), time.Since(start).Round(time.Second))
		}
		return nil
	}

	fs := afero.NewOsFs()
	packOid, objectCount, packSize, err := generatePack(fs, tpl, cfg.Run.K, cfg.Run.OutputDir)
	if err != nil {
		return err
	}

	if !quiet {
		progress.Summary(packOid, objectCount, packSize, time.Since(start))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n",
			filepath.Join(cfg.Run.OutputDir, packBaseName(packOid)+packfile.ExtPackfile),
			filepath.Join(cfg.Run.OutputDir, packBaseName(packOid)+packfile.ExtIndex))
	}
	return nil
}

func packBaseName(packOid ginternals.Oid) string {
	return "pack-" + packOid.String()
}

// runDryRun drives the orchestrator against a writer that discards
// everything, for acceptance-statistics-only runs.
func runDryRun(tpl *object.CommitTemplate, k uint) (*graphbuild.Result, error) {
	return graphbuild.RunGraph(tpl, k, discardWriter{})
}

type discardWriter struct{}

func (discardWriter) WriteObject(ginternals.Oid, object.Type, []byte) error     { return nil }
func (discardWriter) WriteRefDelta(ginternals.Oid, ginternals.Oid, []byte) error { return nil }

// generatePack writes the real pack and index to outputDir, using a
// temporary pack name until the pack's own trailing hash (which names the
// final files) is known.
func generatePack(fs afero.Fs, tpl *object.CommitTemplate, k uint, outputDir string) (packOid ginternals.Oid, objectCount uint32, packSize int64, err error) {
	if err = fs.MkdirAll(outputDir, 0o755); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not create output directory: %w", err)
	}

	tmpBase := filepath.Join(outputDir, ".shorthashpack-tmp")
	packPath := tmpBase + packfile.ExtPackfile
	idxPath := tmpBase + packfile.ExtIndex

	packFile, err := fs.Create(packPath)
	if err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not create pack file: %w", err)
	}

	count := graphbuild.ObjectCount(k)
	pw, err := packfile.NewWriter(packFile, uint32(count))
	if err != nil {
		_ = packFile.Close()
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not start pack writer: %w", err)
	}

	result, err := graphbuild.RunGraph(tpl, k, pw)
	if err != nil {
		_ = packFile.Close()
		return ginternals.NullOid, 0, 0, xerrors.Errorf("graph build failed: %w", err)
	}

	packOid, err = pw.Close()
	if err != nil {
		_ = packFile.Close()
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not close pack writer: %w", err)
	}
	if err = packFile.Close(); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not close pack file: %w", err)
	}

	idxFile, err := fs.Create(idxPath)
	if err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not create index file: %w", err)
	}
	if err = packfile.WriteIndex(idxFile, pw.Entries(), packOid); err != nil {
		_ = idxFile.Close()
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not write index: %w", err)
	}
	if err = idxFile.Close(); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not close index file: %w", err)
	}

	finalBase := filepath.Join(outputDir, packBaseName(packOid))
	if err = fs.Rename(packPath, finalBase+packfile.ExtPackfile); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not rename pack file: %w", err)
	}
	if err = fs.Rename(idxPath, finalBase+packfile.ExtIndex); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not rename index file: %w", err)
	}

	if err = packfile.Verify(fs, finalBase+packfile.ExtPackfile, result.EmissionOIDs, packOid); err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("self-verification failed: %w", err)
	}

	info, err := fs.Stat(finalBase + packfile.ExtPackfile)
	if err != nil {
		return ginternals.NullOid, 0, 0, xerrors.Errorf("could not stat pack file: %w", err)
	}
	return packOid, uint32(count), info.Size(), nil
}
