package rundir

import (
	"os"
	"strings"

	"seqwatch/internal/services"
)

// Metadata is what the instrument tells us about a run.
type Metadata struct {
	RunID    string
	Platform string
	Serial   string
}

// runIDTags are tried in order; instruments disagree on capitalisation.
var runIDTags = []string{"RunID", "RunId"}

// Parser extracts Metadata using an ordered platform table.
type Parser struct {
	platforms []Platform
}

// NewParser builds a parser. An empty table falls back to DefaultPlatforms.
func NewParser(platforms []Platform) *Parser {
	if len(platforms) == 0 {
		platforms = DefaultPlatforms()
	}
	return &Parser{platforms: append([]Platform(nil), platforms...)}
}

// Platforms returns a copy of the table the parser evaluates.
func (p *Parser) Platforms() []Platform {
	return append([]Platform(nil), p.platforms...)
}

// ReadMetadata identifies the platform and run id of the run at dir.
//
// A missing metadata file is ErrNotFound, an unparsable one is ErrParse, and
// an unknown platform, mismatched serial, or missing run id is ErrValidation.
func (p *Parser) ReadMetadata(dir string) (Metadata, error) {
	path := RunParametersPath(dir)
	if !IsFile(path) {
		return Metadata{}, services.Fail(services.ErrNotFound, "%s does not exist", path)
	}
	doc, err := ReadDocument(path)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	identified := false
	for _, platform := range p.platforms {
		serial, ok := doc.Find(platform.SerialTag)
		if !ok {
			continue
		}
		if !strings.HasPrefix(serial, platform.SerialPrefix) {
			return Metadata{}, services.Fail(services.ErrValidation, "Serial number %s does not belong to %s", serial, platform.Name)
		}
		meta.Platform = platform.Name
		meta.Serial = serial
		identified = true
		break
	}
	if !identified {
		return Metadata{}, services.Fail(services.ErrValidation, "Could not identify platform")
	}

	for _, tag := range runIDTags {
		if id, ok := doc.Find(tag); ok && id != "" {
			meta.RunID = id
			return meta, nil
		}
	}
	return Metadata{}, services.Fail(services.ErrValidation, "RunId not found in %s", path)
}

// CheckRunInfo verifies the info file exists and is not empty.
func CheckRunInfo(dir string) error {
	path := RunInfoPath(dir)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return services.Fail(services.ErrNotFound, "%s does not exist", path)
	}
	if info.Size() == 0 {
		return services.Fail(services.ErrValidation, "%s is empty", path)
	}
	return nil
}

// Inspect runs ReadMetadata followed by CheckRunInfo, the two checks a
// directory must pass before it is treated as a run.
func (p *Parser) Inspect(dir string) (Metadata, error) {
	meta, err := p.ReadMetadata(dir)
	if err != nil {
		return Metadata{}, err
	}
	if err := CheckRunInfo(dir); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}
