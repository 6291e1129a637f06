package delegate

import "strings"

// TaskDefinition はエージェントに渡す指示と許可ツールの組。生成後は変更しない。
type TaskDefinition struct {
	Name         string
	Prompt       string
	AllowedTools []string
}

// AllowedToolsArg は --allowedTools に渡すカンマ区切り文字列を返す。
func (t TaskDefinition) AllowedToolsArg() string {
	return strings.Join(t.AllowedTools, ",")
}

// WithPrompt はプロンプトだけを差し替えたコピーを返す。空文字なら元のまま。
func (t TaskDefinition) WithPrompt(prompt string) TaskDefinition {
	if strings.TrimSpace(prompt) == "" {
		return t
	}
	tools := make([]string, len(t.AllowedTools))
	copy(tools, t.AllowedTools)
	return TaskDefinition{Name: t.Name, Prompt: prompt, AllowedTools: tools}
}

const commitPrompt = `You are an automated commit-push bot. Do NOT ask questions. Just act.

Steps:
1. Run ` + "`git status`" + ` to see all changes (staged, unstaged, untracked)
2. Stage ALL changes: ` + "`git add -A`" + `
3. Run ` + "`git diff --cached --stat`" + ` to review what will be committed
4. Commit with a concise conventional message: ` + "`type(scope): description`" + ` (max 72 chars)
5. Push with ` + "`git push -u origin HEAD`" + `

Rules:
- Never ask the user anything. Just execute.
- If there are no changes at all, say "Nothing to commit" and stop.
- Commit message must be lowercase conventional format.`

const tidyPrompt = `You are an automated repository tidy bot. Do NOT ask questions. Just act.

Steps:
1. Run ` + "`git status --porcelain`" + ` and list every untracked file
2. Classify each untracked path as IGNORABLE (build output, caches, logs, editor/OS files, secrets, dependencies) or COMMITTABLE (source, docs, config that belongs in the repo)
3. Add patterns for the IGNORABLE paths to .gitignore (create it if missing, keep existing entries, group related patterns)
4. Stage .gitignore and each COMMITTABLE file by name with ` + "`git add <path>`" + `. Never run ` + "`git add -A`" + ` or ` + "`git add .`" + `
5. Commit with a concise conventional message: ` + "`chore: tidy untracked files`" + ` or a more specific ` + "`type(scope): description`" + ` (max 72 chars)
6. Push with ` + "`git push -u origin HEAD`" + `

Rules:
- Never ask the user anything. Just execute.
- If there are no untracked files, say "Nothing to tidy" and stop.
- Never delete files.`

// CommitTask は全変更をステージして conventional commit し push するタスク。
var CommitTask = TaskDefinition{
	Name:         "commit-push",
	Prompt:       commitPrompt,
	AllowedTools: []string{"Bash(git *)"},
}

// TidyTask は未追跡ファイルを .gitignore とコミット対象に振り分けるタスク。
var TidyTask = TaskDefinition{
	Name:         "tidy",
	Prompt:       tidyPrompt,
	AllowedTools: []string{"Bash(git *)", "Read", "Edit", "Write", "Glob", "Grep"},
}
