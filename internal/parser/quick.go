package parser

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Quick is a session or entry description with inline references pulled out
type Quick struct {
	Description string
	Category    string // category name, resolved by the caller
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	Errors      []string
}

var (
	categoryRegex = regexp.MustCompile(`#([\p{L}0-9_-]+)`)
	projectRegex  = regexp.MustCompile(`@(\S+)`)
	taskRegex     = regexp.MustCompile(`\btask:(\S+)`)
)

// ParseQuick extracts references from a description using inline syntax.
// Syntax: "Fix login redirect #development @<project-uuid> task:<task-uuid>"
func ParseQuick(input string) Quick {
	var result Quick

	// Extract category (#name); underscores stand for spaces
	if m := categoryRegex.FindStringSubmatch(input); m != nil {
		result.Category = strings.ReplaceAll(m[1], "_", " ")
		input = categoryRegex.ReplaceAllString(input, "")
	}

	// Extract task (task:uuid) before @ so an @ inside it is not taken for a project
	if m := taskRegex.FindStringSubmatch(input); m != nil {
		if id, err := uuid.Parse(m[1]); err == nil {
			result.TaskID = &id
		} else {
			result.Errors = append(result.Errors, "Invalid task id '"+m[1]+"'")
		}
		input = taskRegex.ReplaceAllString(input, "")
	}

	// Extract project (@uuid)
	if m := projectRegex.FindStringSubmatch(input); m != nil {
		if id, err := uuid.Parse(m[1]); err == nil {
			result.ProjectID = &id
		} else {
			result.Errors = append(result.Errors, "Invalid project id '"+m[1]+"'")
		}
		input = projectRegex.ReplaceAllString(input, "")
	}

	// Clean up the description (remove extra spaces)
	result.Description = strings.Join(strings.Fields(input), " ")
	return result
}
