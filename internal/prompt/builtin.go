package prompt

// Template names used by the suggestion client.
const (
	FixFile       = "fix-file.md"
	FixSubstitute = "fix-substitute.md"
)

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	FixFile:       fixFileTemplate,
	FixSubstitute: fixSubstituteTemplate,
}

// fixSubstituteTemplate asks for a replacement for the error text itself.
// The reply is substituted for the first occurrence of the error in the file.
const fixSubstituteTemplate = `{{path}} - {{error}}
{{content}}`

const fixFileTemplate = `You are fixing a source file that fails its tests.

File: {{path}}
Language ID: {{language_id}}
Round: {{round}} of {{max_rounds}}
{{#if ticket}}Ticket: {{ticket}}
{{/if}}
## Failure
{{error}}

## Current content
` + "```" + `
{{content}}
` + "```" + `
{{#if previous}}
## Already tried
These versions were tried and still failed. Do not return them again.
{{previous}}
{{/if}}
## Instructions
Reply with the complete corrected file and nothing else. Do not explain the
change. Keep behavior that the failing tests do not cover.
`
