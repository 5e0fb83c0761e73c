package orchestrator

import (
	"fmt"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

const maxFileSteps = 6

func done(label string) pdomain.Step {
	return pdomain.Step{Label: label, Status: pdomain.StepDone, Category: pdomain.StepInProgress}
}

func upcoming(label string, status pdomain.StepStatus) pdomain.Step {
	return pdomain.Step{Label: label, Status: status, Category: pdomain.StepUpcoming}
}

// StepsFor derives the display-only step list for a reply.
func StepsFor(resp *upstream.GenerationResponse) []pdomain.Step {
	if resp == nil {
		return []pdomain.Step{{Label: "Generate a response", Status: pdomain.StepError, Category: pdomain.StepInProgress}}
	}
	switch resp.Kind {
	case upstream.KindCodeUpdate:
		steps := []pdomain.Step{done("Analyzed the request")}
		for i, f := range resp.Files {
			if i == maxFileSteps {
				steps = append(steps, done(fmt.Sprintf("Updated %d more files", len(resp.Files)-maxFileSteps)))
				break
			}
			steps = append(steps, done("Updated "+f.Path))
		}
		return append(steps, upcoming("Review the preview", pdomain.StepPending))
	case upstream.KindPlan:
		return []pdomain.Step{
			done("Analyzed the request"),
			done("Drafted a plan"),
			upcoming("Approve or reject the plan", pdomain.StepCurrent),
			upcoming("Implement the plan", pdomain.StepPending),
		}
	case upstream.KindQuestion:
		return []pdomain.Step{
			done("Analyzed the request"),
			upcoming("Answer the question", pdomain.StepCurrent),
		}
	default:
		return nil
	}
}
