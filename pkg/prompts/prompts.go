// Package prompts builds the generation prompts for each stage of the
// ideation workflow. Prompts are envelopes of a template plus named context
// values, rendered fresh per call and never persisted.
package prompts

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// Character budgets for inlined document text. Stage 1 reads the document
// itself; stages 2 and 3 only get supporting excerpts.
const (
	maxDocumentChars        = 60000
	maxDocumentContextChars = 6000
)

// Envelope is a prompt template together with the named values that fill its
// {placeholder} slots.
type Envelope struct {
	Template string
	Context  map[string]string
}

// Render substitutes every {name} placeholder with its context value.
// Braces that do not form a known placeholder (the JSON shape blocks in the
// templates) pass through untouched.
func (e Envelope) Render() string {
	if len(e.Context) == 0 {
		return e.Template
	}
	pairs := make([]string, 0, len(e.Context)*2)
	for name, value := range e.Context {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(e.Template)
}

const stage1AnalysisTemplate = `Analyze the following document and summarize its key points, main topics, and any information that helps in understanding its context. Provide a concise analysis of what the document is about.

Return your response as clear, well-structured paragraphs of plain text. Do not wrap the response in JSON, quotes, or code fences.

Document:
{document}`

// Stage1Analysis builds the document-analysis prompt.
func Stage1Analysis(documentText string) Envelope {
	return Envelope{
		Template: stage1AnalysisTemplate,
		Context: map[string]string{
			"document": truncate(documentText, maxDocumentChars),
		},
	}
}

const stage2ProblemsTemplate = `You are an expert problem analyst. Based on the analysis below, generate exactly {expected_count} problem statements. Each problem statement must be clear, relevant, and grounded in the analysis content.

Requirements:
1. Each problem statement must be unique and actionable
2. Each explanation must reference specific points from the analysis
3. Order problems by priority and impact
4. Use professional, clear language

Analysis:
{analysis}

{document_context}Return ONLY valid JSON in exactly this shape, with no commentary before or after it:
{
    "problem_statements": [
        {
            "problem": "A clear, concise statement of the problem",
            "explanation": "Detailed explanation connecting the problem to the analysis"
        }
    ]
}
The problem_statements array must contain exactly {expected_count} entries.`

// Stage2Problems builds the problem-generation prompt from the stage-1
// analysis, optionally enriched with source-document excerpts.
func Stage2Problems(analysis, documentText string) Envelope {
	return Envelope{
		Template: stage2ProblemsTemplate,
		Context: map[string]string{
			"expected_count":   strconv.Itoa(models.ProblemStatementCount),
			"analysis":         analysis,
			"document_context": documentContextSection(documentText),
		},
	}
}

const stage3IdeasTemplate = `You are an expert product innovator. Using the analysis and the selected problem statement below, generate exactly {expected_count} product ideas that solve that problem.

Requirements:
1. Each idea must directly address the selected problem
2. Each detailed explanation must cover how the idea solves the problem, its potential impact, and its implementation feasibility
3. Ideas should be innovative yet practical
4. Use professional, clear language

Analysis:
{analysis}

Selected problem:
{problem}

Why it matters:
{problem_explanation}

{document_context}Return ONLY valid JSON in exactly this shape, with no commentary before or after it:
{
    "product_ideas": [
        {
            "idea": "A clear product name or title",
            "detailed_explanation": "How it solves the problem, the expected impact, and feasibility"
        }
    ]
}
The product_ideas array must contain exactly {expected_count} entries.`

// Stage3Ideas builds the idea-generation prompt targeting one problem
// statement.
func Stage3Ideas(analysis, problem, problemExplanation, documentText string) Envelope {
	return Envelope{
		Template: stage3IdeasTemplate,
		Context: map[string]string{
			"expected_count":      strconv.Itoa(models.ProductIdeaCount),
			"analysis":            analysis,
			"problem":             problem,
			"problem_explanation": problemExplanation,
			"document_context":    documentContextSection(documentText),
		},
	}
}

const productImageTemplate = `Prototype for "{idea}". If it is a physical product, create a 3D render. If it is a digital product, create a UI/UX mockup of the landing page. If it is a hybrid product, create a hybrid interface.
Domain: {problem_domain}.
Composition: strategic perspective showcasing key features, clean modern workspace background, landscape (16:9).

Based on the product details below, create the most appropriate visual representation (digital app, physical device, or hybrid).

Product details: {detailed_explanation}
{feedback_section}`

// ProductImage builds the image-generation prompt for one product idea.
// feedback, when non-empty, carries user guidance for a regeneration run.
func ProductImage(ideaTitle, detailedExplanation, problemDomain, feedback string) Envelope {
	feedbackSection := ""
	if strings.TrimSpace(feedback) != "" {
		feedbackSection = "\nIncorporate this feedback from the user: " + strings.TrimSpace(feedback) + "\n"
	}
	return Envelope{
		Template: productImageTemplate,
		Context: map[string]string{
			"idea":                 ideaTitle,
			"detailed_explanation": detailedExplanation,
			"problem_domain":       problemDomain,
			"feedback_section":     feedbackSection,
		},
	}
}

// documentContextSection formats optional source-document excerpts for the
// stage 2 and 3 prompts.
func documentContextSection(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return "Supporting excerpts from the source document:\n" + truncate(text, maxDocumentContextChars) + "\n\n"
}

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
