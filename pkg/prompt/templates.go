package prompt

// separator visually delimits prompt sections, matching the teacher's
// const-template composition convention.
const separator = "================================================================================"

const testGenSystemPrompt = `You are an expert Java test engineer writing JUnit tests for a single method under test. Write thorough, deterministic tests covering normal inputs, boundary values, and error conditions implied by the method's contract. Use mocks for any collaborator types listed. Return ONLY the Java source for the new @Test methods — no surrounding class declaration, no commentary.`

const testRefineSystemPrompt = `You are an expert Java test engineer. A mutant survived your current test suite, meaning no existing test detects the semantic change described below. Write one or more new @Test methods specifically designed to kill this mutant, without weakening or deleting any existing test. Return ONLY the Java source for the new @Test methods — no surrounding class declaration, no commentary.`

const mutantGenSystemPrompt = `You are an expert in mutation testing. Propose semantically meaningful faults ("mutants") in the method under test below: null-check removals, boundary flips, return-value changes, operator swaps, swallowed exceptions, off-by-one errors. Each mutant must change behavior (mutated code must differ from original code) and must stay within the method's declared line range. Respond with a JSON array of objects: {"line_start": int, "line_end": int, "original": string, "mutated": string, "tag": string}.`

const mutantRefineSystemPrompt = `You are an expert in mutation testing. The test suite now kills all previously proposed mutants for this method. Propose additional mutants distinct from those already tried, still respecting the method's line range and semantic-fault taxonomy. Respond with a JSON array of objects: {"line_start": int, "line_end": int, "original": string, "mutated": string, "tag": string}.`

// targetSectionTemplate renders the shared "method under test" context
// block shown to every role. %s = signature, %s = javadoc, %d = line_start,
// %d = line_end, %s = collaborator list, %s = source text.
const targetSectionTemplate = `## Method Under Test

Signature: %s
Javadoc: %s
Line range: %d-%d
Collaborators to mock: %s

` + "```java\n%s\n```"

// contractSectionHeader / bugReportSectionHeader introduce retrieval
// context blocks, omitted entirely when their chunk list is empty.
const contractSectionHeader = "## Related Contracts\n"
const bugReportSectionHeader = "## Related Bug Reports\n"
