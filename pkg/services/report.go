package services

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// BuildSolutionReport renders the final stage-4 report: the document
// analysis, the problem the user settled on, and the chosen solution with
// its prototype image, closed by a summary of how much ground the project
// covered.
func BuildSolutionReport(project *models.Project, analysis string, solution *models.SolutionData, problemsExplored, ideasExplored int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Product Solution Report: %s\n\n", project.ProblemDomain)

	b.WriteString("## Document Analysis\n\n")
	if strings.TrimSpace(analysis) != "" {
		b.WriteString(strings.TrimSpace(analysis))
	} else {
		b.WriteString("No analysis available.")
	}
	b.WriteString("\n\n")

	b.WriteString("## Problem\n\n")
	if solution.SourceProblem != nil {
		fmt.Fprintf(&b, "%s\n\n%s\n\n", solution.SourceProblem.Problem, solution.SourceProblem.Explanation)
	} else {
		b.WriteString("The originating problem statement is no longer available.\n\n")
	}

	b.WriteString("## Chosen Solution\n\n")
	if solution.ChosenSolution != nil {
		fmt.Fprintf(&b, "%s\n\n%s\n\n", solution.ChosenSolution.Idea, solution.ChosenSolution.DetailedExplanation)
		if solution.ChosenSolution.ImageURL != nil {
			fmt.Fprintf(&b, "Prototype image: %s\n\n", *solution.ChosenSolution.ImageURL)
		} else {
			b.WriteString("No prototype image was generated.\n\n")
		}
	}

	fmt.Fprintf(&b, "---\nThis project explored %s and %s before settling on this solution.\n",
		countNoun(problemsExplored, "problem statement"),
		countNoun(ideasExplored, "product idea"))

	return b.String()
}

// countNoun renders "3 product ideas" / "1 product idea".
func countNoun(n int, singular string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(singular))
}
