package sites

import "strings"

// ProvisionMode selects the CMS topology: INTAKE sites share one space and
// read per-client keys from onboarding, DEDICATED sites use configured keys.
type ProvisionMode string

const (
	ModeIntake    ProvisionMode = "INTAKE"
	ModeDedicated ProvisionMode = "DEDICATED"
)

func ParseProvisionMode(s string) ProvisionMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeIntake)) {
		return ModeIntake
	}
	return ModeDedicated
}

func (m ProvisionMode) SpaceMode() SpaceMode {
	if m == ModeIntake {
		return SpaceShared
	}
	return SpaceDedicated
}

// GenerationRequest is one accepted call to build and deploy a site.
type GenerationRequest struct {
	ProjectName  string         `json:"project_name"`
	Requirements string         `json:"requirements"`
	Industry     string         `json:"industry"`
	Features     []string       `json:"features"`
	ClientInfo   map[string]any `json:"client_info"`
	// SpaceKey is an existing CMS space public key to attach to.
	SpaceKey string        `json:"builder_space_public_key"`
	Mode     ProvisionMode `json:"mode"`
}

// ClientString reads a string from ClientInfo, or "" when absent.
func (r GenerationRequest) ClientString(key string) string {
	if r.ClientInfo == nil {
		return ""
	}
	if s, ok := r.ClientInfo[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// EditRequest asks for a targeted change to an existing site.
type EditRequest struct {
	ProjectName string         `json:"project_name"`
	Category    string         `json:"edit_type"`
	Changes     map[string]any `json:"changes"`
}
