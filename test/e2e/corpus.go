// Package e2e provides end-to-end tests with a document corpus and question cases.
package e2e

import (
	"fmt"
	"strings"
)

// E2EDocument is a document entry in the E2E corpus (source name plus content).
type E2EDocument struct {
	Source  string
	Content string
}

// QuestionCase defines a question and the passage that must appear in the
// retrieved context when the question is asked.
type QuestionCase struct {
	Question       string
	ExpectedPhrase string
	Description    string
}

// Corpus holds documents and question cases for E2E tests.
type Corpus struct {
	Documents      []E2EDocument
	Cases          []QuestionCase
	TotalDocs      int
	TotalQuestions int
}

// BuildCorpus returns a corpus of 40 documents with varied content and question
// cases. Each document has a unique signature phrase so a question can assert
// the correct passage was retrieved.
func BuildCorpus() *Corpus {
	docs := buildDocuments(40)
	cases := buildQuestionCases(docs)
	return &Corpus{
		Documents:      docs,
		Cases:          cases,
		TotalDocs:      len(docs),
		TotalQuestions: len(cases),
	}
}

func buildDocuments(n int) []E2EDocument {
	topics := []string{
		"Acme quarterly revenue grew twelve percent on strong cloud subscription demand. Acme quarterly revenue exceeded analyst consensus.",
		"Globex operating margin contracted to nineteen percent after freight surcharges. Globex operating margin pressure is expected to persist.",
		"Initech headcount expanded by four hundred engineers in the platform division. Initech headcount expansion was concentrated in Europe.",
		"Umbrella research spending doubled on oncology trials during the fiscal year. Umbrella research spending now leads the sector.",
		"Stark capital expenditure targeted arc reactor manufacturing capacity. Stark capital expenditure will peak next fiscal year.",
		"Wayne dividend payout increased for the eleventh consecutive year. Wayne dividend payout remains below thirty percent of earnings.",
		"Tyrell gross margin benefited from replicant component insourcing. Tyrell gross margin reached a record fifty-four percent.",
		"Wonka cocoa hedging losses reduced confectionery segment profit. Wonka cocoa hedging was restructured in the fourth quarter.",
		"Cyberdyne defense backlog climbed to nine billion after the autonomous systems award. Cyberdyne defense backlog stretches into next decade.",
		"Soylent protein input costs spiked amid commodity shortages. Soylent protein input inflation outpaced pricing actions.",
		"Oscorp biotech licensing income offset declining chemical sales. Oscorp biotech licensing is now the largest profit pool.",
		"Gringotts loan delinquencies fell to historic lows among goblin-underwritten accounts. Gringotts loan delinquencies remain closely monitored.",
		"Monsters door-leasing utilization recovered to pre-crisis scream levels. Monsters door-leasing utilization drove energy division upside.",
		"Duff brewery volume declined in premium lager while craft lines grew. Duff brewery volume trends diverged sharply by region.",
		"Vandelay latex import tariffs compressed distribution margins. Vandelay latex import costs rose fourteen percent year over year.",
		"Kramerica rollout of the oil bladder system missed internal milestones. Kramerica rollout delays pushed revenue recognition to next year.",
		"Bluth banana stand cash flow stayed resilient despite family turmoil. Bluth banana stand cash flow funds corporate overhead.",
		"Dunder paper sales stabilized as digital substitution slowed. Dunder paper sales benefited from regional client wins.",
		"Pied Piper compression platform bookings tripled among enterprise accounts. Pied Piper compression bookings validate middle-out pricing.",
		"Hooli nucleus handset writedown erased device segment profits. Hooli nucleus writedown totaled two billion dollars.",
		"Aviato travel bookings rebounded with international route reopening. Aviato travel bookings surpassed the prior peak.",
		"Prestige worldwide boat equity swaps produced unrealized gains. Prestige worldwide boat portfolio remains leveraged.",
		"Wernham print advertising decline accelerated in metropolitan markets. Wernham print advertising now trails digital by half.",
		"Sterling creative billings rose on two automotive account wins. Sterling creative billings offset tobacco client attrition.",
		"Gekko arbitrage desk returns moderated under new position limits. Gekko arbitrage returns still beat the composite benchmark.",
		"Nakatomi plaza occupancy reached ninety-seven percent after renovations. Nakatomi plaza occupancy supports rental rate increases.",
		"Weyland terraforming contracts carry multi-decade revenue visibility. Weyland terraforming margins depend on launch cost declines.",
		"Zorg cash conversion weakened on extended customer payment terms. Zorg cash conversion fell below eighty percent of net income.",
		"Clampett oil royalties surged with the basin discovery. Clampett oil royalties are hedged through next spring.",
		"Spacely sprocket automation cut unit labor costs by a third. Spacely sprocket automation payback beat the business case.",
		"Cogswell cog pricing war eroded industry profitability. Cogswell cog pricing actions triggered an antitrust inquiry.",
		"Slate quarry output fell on equipment downtime. Slate quarry output should normalize after the crane overhaul.",
		"Krusty franchise fees grew despite burger recall headlines. Krusty franchise fees include new international territories.",
		"Planet express delivery volumes doubled on intergalactic lanes. Planet express delivery margins suffer from dark matter fuel costs.",
		"Wonka glass elevator capex was deferred pending safety review. Wonka glass elevator program resumes next half.",
		"Frobozz magic subscription churn improved with the loyalty enchantment. Frobozz magic subscription revenue is now majority recurring.",
		"Genco olive oil import volumes held steady through the reorganization. Genco olive oil margins reflect legitimate business focus.",
		"Octan refinery throughput hit nameplate capacity in the quarter. Octan refinery throughput gains lifted downstream earnings.",
		"Paper street soap unit economics improved with direct retail. Paper street soap demand exceeded handmade supply.",
		"Milford conservatory tuition deferrals weighed on receivables. Milford conservatory enrollment was neither seen nor heard.",
	}

	out := make([]E2EDocument, 0, n)
	for i := 0; i < n && i < len(topics); i++ {
		out = append(out, E2EDocument{
			Source:  fmt.Sprintf("e2e-doc-%03d", i+1),
			Content: topics[i],
		})
	}
	// If we need more than len(topics), duplicate with different sources.
	for len(out) < n {
		i := len(out)
		out = append(out, E2EDocument{
			Source:  fmt.Sprintf("e2e-doc-%03d", i+1),
			Content: topics[i%len(topics)],
		})
	}
	return out
}

func buildQuestionCases(docs []E2EDocument) []QuestionCase {
	if len(docs) == 0 {
		return nil
	}
	// Each question reuses the signature words of exactly one document.
	phrases := []string{
		"Acme quarterly revenue",
		"Globex operating margin",
		"Initech headcount",
		"Umbrella research spending",
		"Stark capital expenditure",
		"Wayne dividend payout",
		"Tyrell gross margin",
		"Cyberdyne defense backlog",
		"Soylent protein input",
		"Oscorp biotech licensing",
		"Gringotts loan delinquencies",
		"Duff brewery volume",
		"Vandelay latex import",
		"Bluth banana stand",
		"Dunder paper sales",
		"Pied Piper compression",
		"Hooli nucleus writedown",
		"Sterling creative billings",
		"Nakatomi plaza occupancy",
		"Spacely sprocket automation",
		"Planet express delivery",
		"Octan refinery throughput",
	}
	var cases []QuestionCase
	for _, p := range phrases {
		for _, d := range docs {
			if containsPhrase(d, p) {
				cases = append(cases, QuestionCase{
					Question:       fmt.Sprintf("What happened with %s?", p),
					ExpectedPhrase: p,
					Description:    fmt.Sprintf("question about %q should retrieve %s", p, d.Source),
				})
				break
			}
		}
	}
	return cases
}

func containsPhrase(d E2EDocument, phrase string) bool {
	return strings.Contains(d.Content, phrase)
}
