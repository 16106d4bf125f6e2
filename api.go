package entropyd

import (
	base "entropyd/pkg/entropyd"
)

// BlockBytes is the block size the default FIPS battery expects.
const BlockBytes = base.BlockBytes

// Re-exported errors for convenience.
var (
	ErrPoolFull     = base.ErrPoolFull
	ErrSourceFailed = base.ErrSourceFailed
)

// Type aliases so consumers can import the module root directly.
type (
	Config        = base.Config
	SourceConfig  = base.SourceConfig
	FeedConfig    = base.FeedConfig
	TestsConfig   = base.TestsConfig
	MetricsConfig = base.MetricsConfig
	SeedConfig    = base.SeedConfig
	Policy        = base.Policy
	Runtime       = base.Runtime
	Option        = base.Option
	Block         = base.Block
	Verdict       = base.Verdict
	Source        = base.Source
	Tester        = base.Tester
	Feeder        = base.Feeder
	BlockQueue    = base.BlockQueue
	Observability = base.Observability
	FeederStats   = base.FeederStats
	SeedStore     = base.SeedStore
	State         = base.State
)

// Constructors and options re-exported from pkg/entropyd.
var (
	New                = base.New
	LoadConfig         = base.LoadConfig
	DefaultConfig      = base.DefaultConfig
	WithSource         = base.WithSource
	WithFallback       = base.WithFallback
	WithTester         = base.WithTester
	WithQueue          = base.WithQueue
	WithFeeder         = base.WithFeeder
	WithObservability  = base.WithObservability
	WithSeedStore      = base.WithSeedStore
	NewDeviceSource    = base.NewDeviceSource
	NewRandSource      = base.NewRandSource
	NewDevWriterFeeder = base.NewDevWriterFeeder
	NewSeedFile        = base.NewSeedFile
)
