package policy

// SteamPolicy recognises the Steam client.
type SteamPolicy struct{}

// NewSteamPolicy creates the Steam policy.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

// ProcessPatterns covers the macOS, Linux and Windows client binaries.
func (p *SteamPolicy) ProcessPatterns() []string {
	return []string{
		"steam_osx",
		"steamwebhelper",
		"steam helper",
		"steam",
	}
}

// TitlePatterns only match the client's own windows, not pages that
// mention Steam.
func (p *SteamPolicy) TitlePatterns() []string {
	return []string{
		`^steam$`,
		`^steam - `,
		`^friends list$`,
	}
}

var _ AppPolicy = (*SteamPolicy)(nil)
