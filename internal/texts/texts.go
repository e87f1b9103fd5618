// Package texts holds the user-facing message templates. Templates are
// opaque strings with named {placeholder} substitutions so deployments can
// relocalize the bot by shipping a single YAML file.
package texts

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Texts is the full set of message templates. Placeholders: {user},
// {prefix}, {channel}, {level}, {category}, {count}.
type Texts struct {
	SolveAlias string `yaml:"solve_alias"`

	WelcomeDM       string `yaml:"welcome_dm"`
	Settings        string `yaml:"settings"`
	Help            string `yaml:"help"`
	HelpAdmin       string `yaml:"help_admin"`
	Unauthorized    string `yaml:"unauthorized"`
	UnknownCommand  string `yaml:"unknown_command"`
	UnknownCategory string `yaml:"unknown_category"`

	RiddlePrompt    string `yaml:"riddle_prompt"`
	RiddleCreated   string `yaml:"riddle_created"`
	SolutionHint    string `yaml:"solution_hint"`
	NotifyHint      string `yaml:"notify_hint"`
	NotifyDM        string `yaml:"notify_dm"`
	SolveInPrivate  string `yaml:"solve_in_private"`
	AnswerPrompt    string `yaml:"answer_prompt"`
	Checking        string `yaml:"checking"`
	CorrectNext     string `yaml:"correct_next"`
	CorrectFinished string `yaml:"correct_finished"`
	WrongAnswer     string `yaml:"wrong_answer"`
	AlreadyMaster   string `yaml:"already_master"`
	RoleRepaired    string `yaml:"role_repaired"`
	WaitExpired     string `yaml:"wait_expired"`
}

// Default returns the built-in English templates.
func Default() Texts {
	return Texts{
		SolveAlias: "answer",

		WelcomeDM: "Welcome, {user}! Solve the riddles on the server to unlock new levels.\n" +
			"Send `{prefix}help` to see what I can do.",
		Settings: "React with the bell to get a direct message whenever a new riddle is published.",
		Help: "`{prefix}info` - list categories and level counts\n" +
			"`{prefix}solve <category-id>` - submit an answer (direct message only)\n" +
			"`{prefix}score` - show your points\n" +
			"`{prefix}fix` - repair your level roles",
		HelpAdmin: "`{prefix}add category <label>` - create a category\n" +
			"`{prefix}add level <category-id>` - create the next level\n" +
			"`{prefix}notify <category-id> <level>` - move masters onto a new level\n" +
			"`{prefix}delete category <category-id>` - delete a category\n" +
			"`{prefix}delete levels <category-id> <from> [<to>]` - delete levels\n" +
			"`{prefix}setup` - publish the settings message\n" +
			"`{prefix}fixall` - repair every member",
		Unauthorized:    "You are not authorized to use this command!",
		UnknownCommand:  "Unknown command! Try `{prefix}help`.",
		UnknownCategory: "Sorry, I don't know that category.",

		RiddlePrompt:    "Now send me the riddle!",
		RiddleCreated:   "Riddle has been created!",
		SolutionHint:    "Now go to {channel} and send the solution.",
		NotifyHint:      "After that, type `{prefix}notify {category} {level}` to notify the masters.",
		NotifyDM:        "Hey! A new riddle has been published.\nHave a look at {channel}!",
		SolveInPrivate:  "Hey, {user}! Please send me your solution in a direct message.",
		AnswerPrompt:    "Ok, now send me your answer!",
		Checking:        "Hm, let me check whether that is correct...",
		CorrectNext:     "Correct! You now have access to {channel}!",
		CorrectFinished: "Correct! That was the last riddle of this category - well done!",
		WrongAnswer:     "Sorry, your answer to level {level} is wrong.",
		AlreadyMaster:   "Hey, you have already solved every riddle in this category!",
		RoleRepaired:    "Looks like you had no level role yet.\nHave a look at {channel}!",
		WaitExpired:     "I waited too long for your reply. Please start over.",
	}
}

// Load reads templates from a YAML file on top of the defaults. Missing
// keys keep their default value.
func Load(path string) (Texts, error) {
	t := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read texts file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse texts file: %w", err)
	}
	slog.Info("texts loaded", "path", path)
	return t, nil
}

// Render substitutes {name} placeholders from vars. Unknown placeholders
// are left in place so missing substitutions are visible in chat rather
// than silently dropped.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
