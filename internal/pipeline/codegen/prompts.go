package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
)

const siteSystemPrompt = `You generate complete Next.js 14 websites (App Router, TypeScript, Tailwind CSS, Framer Motion) wired for Builder.io visual editing.

Rules:
- Complete, working code. No placeholders.
- Responsive, with SEO metadata in app/layout.tsx.
- package.json pins next ^14, react ^18, react-dom ^18, @builder.io/react, framer-motion and the Tailwind toolchain, with "engines": {"node": "20.x"}. No native modules.
- vercel.json sets framework nextjs, buildCommand "next build", installCommand "npm install".
- Read NEXT_PUBLIC_BUILDER_API_KEY and NEXT_PUBLIC_CLIENT_SLUG from the environment.

Reply with JSON only:
{"files":[{"path":"package.json","content":"<file text as a JSON string>"}, ...]}

Every "content" value is a string, including JSON files.
Always include: %s, app/globals.css, tailwind.config.ts, next.config.js.`

var industryNotes = map[string]string{
	"real-estate": "Real estate: property search with filters, property cards, a mortgage calculator and an agent contact form.",
	"saas":        "SaaS: pricing tiers, a feature comparison matrix and a signup flow.",
	"ecommerce":   "E-commerce: product grid with filters, product cards, a cart and a checkout flow.",
	"healthcare":  "Healthcare: appointment booking, provider profiles and an insurance checker.",
	"restaurant":  "Restaurant: an interactive menu, online ordering, reservations and a location map.",
}

var featureNotes = map[string]string{
	"spline-3d":       "Add a SplineScene component using @splinetool/react-spline, with loading and error states.",
	"hubspot-form":    "Add a HubSpotForm component posting email, first name, last name, company and phone to the HubSpot Forms API.",
	"stripe-checkout": "Add a StripeCheckout component using @stripe/stripe-js and an API route that creates the checkout session.",
}

func buildSystemPrompt(req sites.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, siteSystemPrompt, strings.Join(sites.RequiredFiles, ", "))
	if note, ok := industryNotes[req.Industry]; ok {
		b.WriteString("\n\n")
		b.WriteString(note)
	}
	for _, f := range req.Features {
		if note, ok := featureNotes[f]; ok {
			b.WriteString("\n")
			b.WriteString(note)
		}
	}
	return b.String()
}

func buildUserPrompt(req sites.GenerationRequest) string {
	features := "standard features only"
	if len(req.Features) > 0 {
		features = strings.Join(req.Features, ", ")
	}
	company := req.ClientString("company_name")
	if company == "" {
		company = req.ClientString("client_name")
	}
	if company == "" {
		company = "N/A"
	}
	goal := req.ClientString("website_goal")
	if goal == "" {
		goal = "lead generation and brand presence"
	}
	return fmt.Sprintf(`Project: %s
Industry: %s
Company: %s
Goal: %s

Requirements:
%s

Features: %s`, req.ProjectName, req.Industry, company, goal, req.Requirements, features)
}

const editSystemPrompt = `You edit existing Next.js files. Change only what is requested and keep everything else byte for byte: imports, structure, types and Tailwind classes. Do not add comments about the change.

Reply with JSON only:
{"files":{"<path>":"<complete updated file text>", ...}}`

// editInstructions renders the change parameters for a category. Keys are
// sorted so the prompt is stable.
func editInstructions(category string, changes map[string]any) string {
	lead := map[string]string{
		"color_palette": "Update the color palette in the Tailwind theme and any hard-coded colors.",
		"content":       "Update the page content as described.",
		"typography":    "Update font families and the type scale, including font imports in globals.css.",
		"layout":        "Adjust spacing, grid and widths as described.",
		"animation":     "Update Framer Motion variants and transitions as described.",
		"add_section":   "Add a new section inline in app/page.tsx that matches the existing design.",
		"fix_bug":       "Fix the described bug without changing other behaviour.",
		"update_images": "Replace the images as described.",
		"seo":           "Update metadata in app/layout.tsx as described.",
	}[category]
	if lead == "" {
		lead = "Make the following changes exactly."
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "# Edit: %s\n%s\n", category, lead)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, changes[k])
	}
	return b.String()
}

func buildEditPrompt(category string, changes map[string]any, files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("# Current files\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "\n## %s\n```\n%s\n```\n", p, files[p])
	}
	b.WriteString("\n")
	b.WriteString(editInstructions(category, changes))
	b.WriteString("\nReturn the complete updated contents of the files you changed.")
	return b.String()
}
