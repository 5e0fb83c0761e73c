package orchestrator

import "regexp"

const (
	ModelMultiPass      = "multi-pass"
	ModelHighCapability = "high-capability"
	ModelStandard       = "standard"
)

var restartPhrase = regexp.MustCompile(`(?i)\b(restart|recreate|re-create|start (over|fresh|from scratch)|from scratch|rebuild (it|everything|the (whole )?(site|app|project)))\b`)

// ModelInput is what model selection looks at.
type ModelInput struct {
	Text         string
	HighEffort   bool
	FirstTurn    bool
	StarterOnly  bool
	UserModel    string
	DefaultModel string
}

// Selection is the model hint sent with a request.
type Selection struct {
	Model     string
	MultiPass bool
}

// SelectModel picks the model hint: high effort wins, then a first turn on an
// untouched project or a restart phrase, then the user's choice.
func SelectModel(in ModelInput) Selection {
	switch {
	case in.HighEffort:
		return Selection{Model: ModelMultiPass, MultiPass: true}
	case in.FirstTurn && in.StarterOnly, restartPhrase.MatchString(in.Text):
		return Selection{Model: ModelHighCapability}
	case in.UserModel != "":
		return Selection{Model: in.UserModel}
	case in.DefaultModel != "":
		return Selection{Model: in.DefaultModel}
	default:
		return Selection{Model: ModelStandard}
	}
}
