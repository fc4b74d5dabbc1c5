package runtime

import "fmt"

// SystemPrompt explains the tools to the model.
const SystemPrompt = `You answer questions about past experience by browsing a hierarchical episodic memory.

The history is a tree. Every inner node covers a time range and summarizes its children; the leaves are raw observations. Collapsed children are shown as "...", expanded ones with their index.

Address a node by its path of child indices from the top, e.g. [0, 2] is the third child of the first child. Select children with a filter: an index, a YYYY-MM-DD date, a timestamp, or a list of two of the same kind for a range. Index ranges exclude the second index, so a filter of [1, 3] selects children 1 and 2; date and timestamp ranges include both ends.

- history shows the current state of the view.
- expand, collapse and collapse_all_but change which children are visible.
- search expands the children relevant to a query; close_match only reports genuinely close matches.
- now returns the current date and time.
- answer gives the final answer. Call it exactly once, when you are confident.

Keep the view small: collapse what you no longer need.`

// NoToolCallMessage nudges a model that replied without calling a tool.
const NoToolCallMessage = "Please continue by calling one of the tools. Call answer once you know the answer."

func questionMessage(question string) string {
	return fmt.Sprintf("Question: %s", question)
}
