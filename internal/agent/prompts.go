package agent

import "fmt"

const (
	objectiveSuffix = " Keep response to a maximum of a 100 words."
	askSuffix       = "\n Return how you've conducted your analysis: steps taken to get to the answer. If you're making assumptions, state and justify them."
	warmMessage     = "Say Hi!"
)

// SystemMessage is the instruction given to a session, embedding the directory overview.
func SystemMessage(overview string) string {
	return fmt.Sprintf(`You are a helpful AI. You are given a directory structure of the company files and you need to analyze them based on the objective. Use the tools you have at your disposal to achieve the objective.

Always explain how you've conducted your analysis: steps taken to get to the answer. If you're making assumptions, state and justify them.

For example, if the user asks for a financial metric, give the result, then outline the files used, the values used from the files, and the calculations performed (if applicable).

This is the directory structure(Note when specifying a file path, you are supposed to include the root):

%s`, overview)
}

func objectiveMessage(objective string) string {
	return "This is the objective: " + objective + objectiveSuffix
}
