// Package config loads the four template knobs (tree oid, author line,
// committer line, message prefix) plus the run parameters (downscale
// width k, output directory, dry-run) from an optional INI file,
// mirroring ginternals/config's use of gopkg.in/ini.v1 for git's own
// config files. Nothing here reads the process environment for template
// or run knobs; internal/env is reserved for ambient CLI behavior (see
// cmd/shorthashpack) that isn't part of the generation algorithm itself.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals"
	"github.com/not-an-aardvark/every-git-commit-shorthash/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// DefaultK is the full-scale short-identifier width this tool targets:
// 2^28 possible 7-hex-character prefixes.
const DefaultK = 28

// defaultLoadOptions mirrors ginternals/config/file_aggregate.go's
// defaultLoadOption: skip lines ini.v1 can't parse rather than failing
// the whole load on a stray comment format.
var defaultLoadOptions = ini.LoadOptions{ //nolint:gochecknoglobals
	SkipUnrecognizableLines: true,
}

// defaultTreeID is an arbitrary-but-fixed placeholder tree: every
// generated commit points at the same tree (the tree oid only needs to
// be a valid 40-hex string, not an object that exists on disk), so a run
// with no config file is still fully deterministic.
const defaultTreeID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904" // git's well-known empty-tree oid

// Template holds the byte-string knobs that determine every generated
// commit's content. Changing any field changes the OID of every commit in
// the output.
type Template struct {
	TreeID        ginternals.Oid
	Author        object.Signature
	Committer     object.Signature
	MessagePrefix string
}

// Run holds the parameters that control one invocation's shape and
// output location, as opposed to commit content.
type Run struct {
	K         uint
	OutputDir string
	DryRun    bool
}

// Config is a fully resolved, ready-to-use configuration.
type Config struct {
	Template Template
	Run      Run
}

// Default returns the configuration used when no config file is given:
// the full-scale k=28 width, the current directory as output, the
// well-known empty tree, and a fixed zero-timestamp identity so repeated
// default runs are byte-identical.
func Default() *Config {
	treeID, err := ginternals.NewOidFromStr(defaultTreeID)
	if err != nil {
		panic("config: defaultTreeID is not a valid oid: " + err.Error())
	}
	sig := object.Signature{Name: "shorthashpack", Email: "shorthashpack@localhost", Time: time.Unix(0, 0).UTC()}
	return &Config{
		Template: Template{
			TreeID:        treeID,
			Author:        sig,
			Committer:     sig,
			MessagePrefix: "commit ",
		},
		Run: Run{
			K:         DefaultK,
			OutputDir: ".",
		},
	}
}

// Load reads an INI file from fs at path and overlays it onto Default(),
// returning the result. An empty path returns Default() unmodified.
//
// Expected sections:
//
//	[template]
//	tree = <40 hex oid>
//	author = Name <email> <unix-timestamp> <+zzzz>
//	committer = Name <email> <unix-timestamp> <+zzzz>
//	messageprefix = <string>
//
//	[run]
//	k = <uint>
//	output = <directory>
//	dryrun = <bool>
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("could not read config file %s: %w", path, err)
	}
	f, err := ini.LoadSources(defaultLoadOptions, raw)
	if err != nil {
		return nil, xerrors.Errorf("could not parse config file %s: %w", path, err)
	}

	if s := f.Section("template"); s != nil {
		if k := s.Key("tree"); k.String() != "" {
			oid, err := ginternals.NewOidFromStr(strings.TrimSpace(k.String()))
			if err != nil {
				return nil, xerrors.Errorf("invalid template.tree: %w", err)
			}
			cfg.Template.TreeID = oid
		}
		if k := s.Key("author"); k.String() != "" {
			sig, err := object.NewSignatureFromBytes([]byte(k.String()))
			if err != nil {
				return nil, xerrors.Errorf("invalid template.author: %w", err)
			}
			cfg.Template.Author = sig
		}
		if k := s.Key("committer"); k.String() != "" {
			sig, err := object.NewSignatureFromBytes([]byte(k.String()))
			if err != nil {
				return nil, xerrors.Errorf("invalid template.committer: %w", err)
			}
			cfg.Template.Committer = sig
		}
		if k := s.Key("messageprefix"); k.String() != "" {
			cfg.Template.MessagePrefix = k.String()
		}
	}

	if s := f.Section("run"); s != nil {
		if k := s.Key("k"); k.String() != "" {
			v, err := strconv.ParseUint(k.String(), 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("invalid run.k: %w", err)
			}
			cfg.Run.K = uint(v)
		}
		if k := s.Key("output"); k.String() != "" {
			cfg.Run.OutputDir = k.String()
		}
		if k := s.Key("dryrun"); k.String() != "" {
			v, err := strconv.ParseBool(k.String())
			if err != nil {
				return nil, xerrors.Errorf("invalid run.dryrun: %w", err)
			}
			cfg.Run.DryRun = v
		}
	}

	return cfg, nil
}

// CommitTemplate builds the object.CommitTemplate the graph orchestrator
// consumes from this config's Template knobs.
func (c *Config) CommitTemplate() *object.CommitTemplate {
	return object.NewCommitTemplate(c.Template.TreeID, c.Template.Author, c.Template.Committer, c.Template.MessagePrefix)
}
