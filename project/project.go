package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/complete"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.project")

// FileName is the configuration file looked up in the project root.
const FileName = "gce.toml"

// DefaultAddr is the HTTP listen address used when none is configured.
const DefaultAddr = ":8080"

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Project is a directory of Groovy scripts together with the configuration
// that decides which classes completion can see.
type Project struct {
	RootDir    string
	ConfigFile string
	Config     Config
}

type Config struct {
	Scan      ScanConfig      `toml:"scan"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Server    ServerConfig    `toml:"server"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type ScanConfig struct {
	AutoImport     bool     `toml:"auto_import"`
	AcceptPackages []string `toml:"accept_packages"`
	RejectPackages []string `toml:"reject_packages"`
}

type CatalogConfig struct {
	// Builtin adds the embedded JDK subset.
	Builtin bool `toml:"builtin"`
	// Paths are jars, class directories, .class and .yaml files, or glob
	// patterns of those, relative to the project root.
	Paths []string `toml:"paths"`
	// PackageCacheSize bounds the package listings an engine keeps between
	// requests. Zero keeps the engine default.
	PackageCacheSize int `toml:"package_cache_size"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelemetryConfig struct {
	Metrics bool `toml:"metrics"`
}

// Defaults returns the configuration used when gce.toml is absent.
func Defaults() Config {
	return Config{
		Scan:    ScanConfig{AutoImport: true},
		Catalog: CatalogConfig{Builtin: true},
		Server:  ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads gce.toml from the current directory.
func Load() (*Project, error) {
	return LoadFrom(".")
}

// LoadFrom reads gce.toml from rootDir. A missing file results in the
// default configuration.
func LoadFrom(rootDir string) (*Project, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", rootDir)
	}
	p := &Project{
		RootDir:    abs,
		ConfigFile: filepath.Join(abs, FileName),
		Config:     Defaults(),
	}
	data, err := os.ReadFile(p.ConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Debugf("no %s in %s, using defaults", FileName, abs)
		return p, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := decodeConfig(data, p.ConfigFile, &p.Config); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeConfig(data []byte, path string, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return &ParseError{Path: path, Err: errors.New(strictErr.String())}
		}
		return &ParseError{Path: path, Err: err}
	}
	for i, pkg := range cfg.Scan.AcceptPackages {
		cfg.Scan.AcceptPackages[i] = strings.TrimSpace(pkg)
	}
	for i, pkg := range cfg.Scan.RejectPackages {
		cfg.Scan.RejectPackages[i] = strings.TrimSpace(pkg)
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = DefaultAddr
	}
	return nil
}

// CatalogPaths returns the configured catalog paths resolved against the
// project root.
func (p *Project) CatalogPaths() []string {
	var paths []string
	for _, path := range p.Config.Catalog.Paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.RootDir, path)
		}
		paths = append(paths, path)
	}
	return paths
}

// BuildCatalog loads the builtin JDK subset and every catalog path through
// the configured package filter.
func (p *Project) BuildCatalog() (*catalog.Catalog, error) {
	b := catalog.NewBuilder(
		catalog.AcceptPackages(p.Config.Scan.AcceptPackages...),
		catalog.RejectPackages(p.Config.Scan.RejectPackages...),
	)
	if p.Config.Catalog.Builtin {
		if err := b.AddBuiltin(); err != nil {
			return nil, errors.Wrap(err, "builtin catalog")
		}
	}
	for _, path := range p.CatalogPaths() {
		if err := b.LoadPath(path); err != nil {
			return nil, errors.Wrap(err, "catalog path")
		}
	}
	log.Infof("catalog: %d types from %d paths", b.Len(), len(p.Config.Catalog.Paths))
	return b.Build(), nil
}

// NewEngine builds the catalog and returns an engine configured for this
// project. Extra options are applied after the project's own.
func (p *Project) NewEngine(opts ...complete.Option) (*complete.Engine, error) {
	cat, err := p.BuildCatalog()
	if err != nil {
		return nil, err
	}
	all := []complete.Option{complete.WithAutoImport(p.Config.Scan.AutoImport)}
	if n := p.Config.Catalog.PackageCacheSize; n > 0 {
		all = append(all, complete.WithPackageCacheSize(n))
	}
	all = append(all, opts...)
	return complete.NewEngine(cat, all...)
}

// WatchPaths lists the files and directories whose changes invalidate the
// catalog: the config file and the non-glob parts of each catalog path.
func (p *Project) WatchPaths() []string {
	paths := []string{p.ConfigFile}
	for _, path := range p.CatalogPaths() {
		if i := strings.IndexAny(path, "*?["); i >= 0 {
			path = filepath.Dir(path[:i+1])
		}
		paths = append(paths, path)
	}
	return paths
}
