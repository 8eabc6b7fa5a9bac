package rundir

import "seqwatch/internal/config"

// Platform describes how to recognise one instrument family from its
// metadata file.
type Platform struct {
	Name         string
	SerialTag    string
	SerialPrefix string
}

// Platform names used by the built-in table.
const (
	NovaSeqXPlus = "NovaSeq X Plus"
	NextSeq5x0   = "NextSeq 5x0"
	MiSeq        = "MiSeq"
)

// DefaultPlatforms returns the built-in platform table in evaluation order.
func DefaultPlatforms() []Platform {
	return []Platform{
		{Name: NovaSeqXPlus, SerialTag: "InstrumentSerialNumber", SerialPrefix: "LH"},
		{Name: NextSeq5x0, SerialTag: "InstrumentID", SerialPrefix: "NB"},
		{Name: MiSeq, SerialTag: "ScannerID", SerialPrefix: "M"},
	}
}

// PlatformsFromConfig returns the configured platform table, or the
// built-in one when none is configured.
func PlatformsFromConfig(cfg *config.Config) []Platform {
	if cfg == nil || len(cfg.Platforms) == 0 {
		return DefaultPlatforms()
	}
	out := make([]Platform, 0, len(cfg.Platforms))
	for _, p := range cfg.Platforms {
		out = append(out, Platform{Name: p.Name, SerialTag: p.SerialTag, SerialPrefix: p.SerialPrefix})
	}
	return out
}
