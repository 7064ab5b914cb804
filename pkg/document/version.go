package document

import (
	"fmt"
	"strings"
)

// Version is the closed set of description format families the registry
// understands. It is decided once, at parse time, by the version
// discriminator field of the document.
type Version int

const (
	// VersionUnknown means the document carries no supported discriminator.
	VersionUnknown Version = iota
	// VersionSwaggerV2 is the legacy Swagger 2.x family. Entries in this
	// family are stored with reduced fidelity.
	VersionSwaggerV2
	// VersionOpenAPIV3 is the OpenAPI 3.x family.
	VersionOpenAPIV3
)

func (v Version) String() string {
	switch v {
	case VersionSwaggerV2:
		return "swagger2"
	case VersionOpenAPIV3:
		return "openapi3"
	default:
		return "unknown"
	}
}

// Version inspects the discriminator fields and returns the format family.
// An "openapi" field wins over "swagger" when both are present.
func (d *Document) Version() Version {
	if major(d.discriminator("openapi")) == "3" {
		return VersionOpenAPIV3
	}
	if major(d.discriminator("swagger")) == "2" {
		return VersionSwaggerV2
	}
	return VersionUnknown
}

// discriminator reads a version field leniently: YAML decodes an unquoted
// "swagger: 2.0" as a float, not a string.
func (d *Document) discriminator(key string) string {
	v, ok := d.Get(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64, int:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func major(version string) string {
	if version == "" {
		return ""
	}
	return strings.SplitN(version, ".", 2)[0]
}
