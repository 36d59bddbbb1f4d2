package policy

// Dota2Policy recognises Dota 2.
type Dota2Policy struct{}

// NewDota2Policy creates the Dota 2 policy.
func NewDota2Policy() *Dota2Policy {
	return &Dota2Policy{}
}

func (p *Dota2Policy) ID() string {
	return "dota2"
}

func (p *Dota2Policy) Name() string {
	return "Dota 2"
}

func (p *Dota2Policy) ProcessPatterns() []string {
	return []string{
		"dota2",
		"dota_osx64",
		"dota 2",
	}
}

func (p *Dota2Policy) TitlePatterns() []string {
	return []string{
		`^dota 2$`,
		`^dota 2 - `,
	}
}

var _ AppPolicy = (*Dota2Policy)(nil)
