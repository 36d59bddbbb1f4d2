package policy

// LeaguePolicy recognises League of Legends and its Riot launcher.
type LeaguePolicy struct{}

// NewLeaguePolicy creates the League of Legends policy.
func NewLeaguePolicy() *LeaguePolicy {
	return &LeaguePolicy{}
}

func (p *LeaguePolicy) ID() string {
	return "league"
}

func (p *LeaguePolicy) Name() string {
	return "League of Legends"
}

func (p *LeaguePolicy) ProcessPatterns() []string {
	return []string{
		"league of legends",
		"leagueclient",
		"riotclientservices",
	}
}

func (p *LeaguePolicy) TitlePatterns() []string {
	return []string{
		`^league of legends( \(tm\) client)?$`,
		`^league client$`,
		`^riot client$`,
	}
}

var _ AppPolicy = (*LeaguePolicy)(nil)
