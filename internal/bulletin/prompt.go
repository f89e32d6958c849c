package bulletin

import "strings"

// DefaultSystemPrompt is served by GET /system-prompt until an operator saves
// their own.
const DefaultSystemPrompt = "You're a drought analyst. Analyze the provided URLs and create a comprehensive drought-focused summary for the selected region. Generate the headlines before summarizing the content. Include up to two paragraphs for the following topics and headlines:\n\n" +
	"1. Current Drought Conditions: Assess the severity and extent of drought in the region\n" +
	"2. Water Resources: Status of surface water, groundwater, and reservoir levels\n" +
	"3. Impact on food security and Agriculture: Effects on crops and livestock\n" +
	"4. Food prices and economic impact\n\n" +
	"Strictly use all headlines based on these four categories and separate the sections with breaks.\n" +
	"Ensure that the text describes current conditions without phrases such as 'the report highlights'. Simply summarize conditions from the URLs or PDFs provided. Use no external information."

// SectionOrderInstruction is appended to every regional prompt, custom or not.
const SectionOrderInstruction = "CRITICAL: Your response MUST start with 'Current Drought Conditions:' and include all four sections in this exact order: Current Drought Conditions, Food Security and Production, Water Resources, Food Prices. Each section must start with the exact header followed by a colon."

const userPreamble = "Please analyze all the following content sources and provide a comprehensive regional analysis:\n\n"

// systemPrompt finishes a regional prompt with the section-order instruction.
func systemPrompt(regional string) string {
	return strings.TrimRight(regional, "\n") + "\n\n" + SectionOrderInstruction
}

// userPrompt wraps the corpus for the model.
func userPrompt(corpus string) string {
	return userPreamble + corpus
}
