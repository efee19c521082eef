package research

import "fmt"

const systemAnalyst = "You are a senior market research analyst. Respond only in valid JSON."
const systemIntelligence = "You are a market intelligence analyst. Respond only in valid JSON."
const systemWriter = "You are an expert business writer. Respond only in valid JSON."
const systemAssistant = "You are a market research assistant answering follow-up questions about a finished report. Be concise and factual; only use the report content."

const swotPromptTemplate = `You are a senior market research analyst. Based on the following information about %s, generate a detailed SWOT analysis.

INSTRUCTIONS:
- Each category (Strengths, Weaknesses, Opportunities, Threats) should have 3-5 bullet points
- Each bullet point should be specific and data-backed where possible
- Focus on actionable insights, not generic observations
- If information is insufficient for a category, note what additional research is needed

CONTEXT DATA:
%s

OUTPUT FORMAT (respond in valid JSON only, no extra text):
{
  "strengths": ["point 1", "point 2"],
  "weaknesses": ["point 1", "point 2"],
  "opportunities": ["point 1", "point 2"],
  "threats": ["point 1", "point 2"]
}`

const trendsPromptTemplate = `You are a market intelligence analyst. Based on the following web data about %s and its industry, identify the top 5-7 current market trends.

INSTRUCTIONS:
- Each trend should have a clear title and 2-3 sentence description
- Rate each trend's relevance as high, medium, or low
- Focus on trends that are actionable for business strategy
- Include data points or evidence where available
- Don't fabricate statistics, only cite what's in the context

CONTEXT DATA:
%s

OUTPUT FORMAT (respond in valid JSON only, no extra text):
[
  {
    "title": "Trend title",
    "description": "2-3 sentence description with evidence",
    "relevance": "high"
  }
]`

const reportPromptTemplate = `You are an expert business writer who transforms complex analysis into clear, professional reports. Compile a comprehensive market research report for %s.

You have the following data:

SEARCH CONTEXT:
%s

SWOT ANALYSIS:
%s

MARKET TRENDS:
%s

INSTRUCTIONS:
- Write a 2-3 paragraph company overview
- Summarize the competitive landscape in 1-2 paragraphs
- List 5-10 key findings as concise bullet points
- Suggest 3-5 short follow-up questions a reader of this report might ask next
- Be professional, clear, and actionable
- Don't fabricate data, only use what's provided

OUTPUT FORMAT (respond in valid JSON only, no extra text):
{
  "company_overview": "2-3 paragraph overview",
  "competitive_landscape": "1-2 paragraph analysis",
  "key_findings": ["finding 1", "finding 2", "finding 3"],
  "suggested_questions": ["question 1", "question 2", "question 3"]
}`

const answerPromptTemplate = `A market research report about %q is reproduced below as JSON. Answer the user's follow-up question using only this report.

REPORT:
%s

QUESTION:
%s`

func swotPrompt(company, context string) string {
	return fmt.Sprintf(swotPromptTemplate, company, context)
}

func trendsPrompt(company, context string) string {
	return fmt.Sprintf(trendsPromptTemplate, company, context)
}

func reportPrompt(company, context, swotJSON, trendsJSON string) string {
	return fmt.Sprintf(reportPromptTemplate, company, context, swotJSON, trendsJSON)
}

// AnswerPrompt builds the follow-up question prompt used by the Q&A limiter.
func AnswerPrompt(query, reportJSON, question string) string {
	return fmt.Sprintf(answerPromptTemplate, query, reportJSON, question)
}

// SystemAssistant is the system message for follow-up answers.
func SystemAssistant() string { return systemAssistant }
