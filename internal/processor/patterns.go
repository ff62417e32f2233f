package processor

import (
	"regexp"

	"orienta-rag/internal/models"
)

// Pattern tables used by the semantic chunker. Content-type and heading
// expressions see lowercased and trimmed text respectively; the others carry
// their own case flags.

type institutionPattern struct {
	Code     string
	Category models.InstitutionType
	Patterns []*regexp.Regexp
	// Name captures a city, optionally preceded by a particle, after the school name
	Name []*regexp.Regexp
}

const cityCapture = `(?:\s+(?i:de|d'|à))?[- ]+((?i:el|al|ben|beni|sidi|ait)[- ]+)?(\pL+)`

// institutionTable is matched in order against the raw filename and leading
// page text. Abbreviations are word-bounded; EST is matched in capitals only
// because "est" is also a common French verb.
var institutionTable = []institutionPattern{
	{
		Code:     "ensa",
		Category: models.InstitutionEngineering,
		Patterns: compileAll(
			`(?i)école nationale des sciences appliquées|\bensa\b`,
			`(?i)national school of applied sciences`,
		),
		Name: compileAll(
			`(?i:\bensa)`+cityCapture,
			`(?i:école nationale des sciences appliquées)`+cityCapture,
		),
	},
	{
		Code:     "ensias",
		Category: models.InstitutionEngineering,
		Patterns: compileAll(
			`(?i)école nationale supérieure d'informatique|\bensias\b`,
			`(?i)national school of computer science`,
		),
	},
	{
		Code:     "ensam",
		Category: models.InstitutionEngineering,
		Patterns: compileAll(
			`(?i)école nationale supérieure d'arts et métiers|\bensam\b`,
		),
		Name: compileAll(`(?i:\bensam)` + cityCapture),
	},
	{
		Code:     "emsi",
		Category: models.InstitutionEngineering,
		Patterns: compileAll(
			`(?i)école marocaine des sciences de l'ingénieur|\bemsi\b`,
			`(?i)moroccan school of engineering sciences`,
		),
		Name: compileAll(`(?i:\bemsi)` + cityCapture),
	},
	{
		Code:     "emi",
		Category: models.InstitutionEngineering,
		Patterns: compileAll(
			`(?i)école mohammadia d'ingénieurs|\bemi\b`,
			`(?i)mohammadia school of engineers`,
		),
	},
	{
		Code:     "encg",
		Category: models.InstitutionBusiness,
		Patterns: compileAll(
			`(?i)école nationale de commerce et de gestion|\bencg\b`,
			`(?i)national school of business and management`,
		),
		Name: compileAll(
			`(?i:\bencg)`+cityCapture,
			`(?i:école nationale de commerce et de gestion)`+cityCapture,
		),
	},
	{
		Code:     "fsjes",
		Category: models.InstitutionBusiness,
		Patterns: compileAll(
			`(?i)faculté des sciences juridiques|\bfsjes\b`,
			`(?i)faculty of legal economic and social sciences`,
		),
	},
	{
		Code:     "est",
		Category: models.InstitutionSpecialized,
		Patterns: compileAll(
			`(?i:école supérieure de technologie)|\bEST\b|^(?i:est)[ _-]`,
			`(?i)higher school of technology`,
		),
		Name: compileAll(
			`(?:\bEST|^(?i:est))`+cityCapture,
			`(?i:école supérieure de technologie)`+cityCapture,
		),
	},
	{
		Code:     "fst",
		Category: models.InstitutionSpecialized,
		Patterns: compileAll(
			`(?i)faculté des sciences et techniques|\bfst\b`,
			`(?i)faculty of science and technology`,
		),
		Name: compileAll(`(?i:\bfst)` + cityCapture),
	},
	{
		Code:     "ispits",
		Category: models.InstitutionSpecialized,
		Patterns: compileAll(
			`(?i)institut spécialisé des technologies|\bispits\b`,
			`(?i)specialized institute of technology`,
		),
	},
	{
		Code:     "universite_privee",
		Category: models.InstitutionPrivateUniversity,
		Patterns: compileAll(
			`(?i)universit[ée] priv[ée]e`,
			`(?i)private university`,
		),
	},
}

var contentTypePatterns = map[models.ContentType][]*regexp.Regexp{
	models.ContentPresentation: compileAll(
		`présentation|à propos|histoire|création|mission|vision|valeurs`,
		`qui sommes nous|notre école|notre établissement`,
		`introduction|overview|general`,
	),
	models.ContentAdmission: compileAll(
		`conditions?\s+d['e]?\s*admission|critères?\s+d['e]?\s*admission`,
		`prérequis|requirements|eligibility`,
		`conditions?\s+d['e]?\s*accès|modalités?\s+d['e]?\s*admission`,
		`profils?\s+requis|diplômes?\s+requis`,
	),
	models.ContentProcedures: compileAll(
		`procédures?\s+de\s+candidature|comment\s+candidater`,
		`inscription|candidature|application`,
		`étapes?\s+d['e]?\s*inscription|démarches?`,
		`concours|sélection|recrutement`,
	),
	models.ContentGradeThreshold: compileAll(
		`seuils?|notes?\s+minimum|moyennes?\s+requises?`,
		`barème|notation|évaluation`,
		`notes?\s+d['e]?\s*admission|résultats?\s+requis`,
		`moyenne\s+générale|mentions?`,
	),
	models.ContentCareers: compileAll(
		`débouchés?|métiers?|carrières?|emplois?`,
		`opportunités?\s+professionnelles?|perspectives?\s+d['e]?\s*emploi`,
		`secteurs?\s+d['e]?\s*activité|domaines?\s+d['e]?\s*intervention`,
		`après\s+la\s+formation|que\s+faire\s+après`,
	),
	models.ContentCurriculum: compileAll(
		`programme|formation|cursus|modules?`,
		`matières?|disciplines?|enseignements?`,
		`spécialisations?|options?|parcours`,
		`plan\s+d['e]?\s*études|structure\s+pédagogique`,
	),
	models.ContentStudentLife: compileAll(
		`vie\s+étudiante|campus|résidence|logement`,
		`activités?\s+extra.?scolaires?|clubs?|associations?`,
		`services?\s+aux\s+étudiants|restauration`,
		`sport|culture|loisirs?`,
	),
	models.ContentFees: compileAll(
		`frais|coûts?|tarifs?|prix`,
		`scolarité|financement|bourses?`,
		`droits?\s+d['e]?\s*inscription|droits?\s+universitaires?`,
		`paiement|facturation`,
	),
	models.ContentInfrastructure: compileAll(
		`infrastructure|équipements?|installations?`,
		`laboratoires?|bibliothèques?|salles?`,
		`matériel|technologies?|outils`,
		`locaux|bâtiments?|campus`,
	),
	models.ContentPartnerships: compileAll(
		`partenariats?|partenaires?|conventions?`,
		`entreprises?\s+partenaires?|collaborations?`,
		`accords?|coopération|échanges?`,
		`international|stages?|alternance`,
	),
	models.ContentContact: compileAll(
		`contact|coordonnées|adresse`,
		`téléphone|email|site\s+web`,
		`comment\s+nous\s+joindre|nous\s+contacter`,
		`localisation|plan\s+d['e]?\s*accès`,
	),
}

const months = `janvier|février|mars|avril|mai|juin|juillet|août|septembre|octobre|novembre|décembre`

// entityOrder fixes the order in which the general entity battery runs
var entityOrder = []string{
	"dates_importantes",
	"seuils_notes",
	"frais_montants",
	"duree_formation",
	"capacite_accueil",
}

// entityPatterns run case-insensitively against the original section text.
// When an expression has a capture group, the first group is the extracted value.
var entityPatterns = map[string][]*regexp.Regexp{
	"dates_importantes": compileAll(
		`\b\d{1,2}[/-]\d{1,2}[/-]\d{4}\b`,
		`(?i)\b\d{1,2}\s+(?:`+months+`)\s+\d{4}`,
		`(?i)\b(?:`+months+`)\s+\d{4}`,
	),
	"seuils_notes": compileAll(
		`(?i)(?:moyenne|note|seuil).*?(\d{1,2}(?:[.,]\d{1,2})?)\s*(?:/\s*20|sur\s+20)`,
		`(?i)(\d{1,2}(?:[.,]\d{1,2})?)\s*(?:/\s*20|sur\s+20).*?(?:minimum|requis|exigé)`,
		`(?i)au moins\s+(\d{1,2}(?:[.,]\d{1,2})?)`,
	),
	"frais_montants": compileAll(
		`(?i)(\d+(?:[ .]\d{3})*)\s*(?:dh|dirhams?|mad)\b`,
		`(?i)(\d+(?:[.,]\d+)?)\s*(?:mille|millions?)\b`,
	),
	"duree_formation": compileAll(
		`(?i)\b(\d+)\s*(?:ans|an)\b`,
		`(?i)\b(\d+)\s*années?`,
		`(?i)\b(\d+)\s*semestres?`,
	),
	"capacite_accueil": compileAll(
		`(?i)\b(\d+)\s*(?:places?|étudiants?|candidats?)`,
		`(?i)capacité\D{0,40}?(\d+)`,
		`(?i)accueille\D{0,40}?(\d+)`,
	),
}

var (
	filierePattern = regexp.MustCompile(
		`(?i)(?:filières?|bac|bachelier).*?(sciences? math(?:ématiques)?|\bsm\b|sciences? physiques?|\bsp\b|\bsvt\b|\bst\b|\bse\b|\blsh\b)`)
	stepPattern    = regexp.MustCompile(`(?m)^\s*(\d{1,2})\s*[.)-]\s+(.+)$`)
	careerPatterns = compileAll(
		`(?i)ingénieur\s+(\pL+)`,
		`(?i)développeur\s+(\pL+)`,
		`(?i)chef\s+de\s+(\pL+)`,
		`(?i)responsable\s+(\pL+)`,
	)
)

// headingPatterns recognize short section-title lines
var headingPatterns = compileAll(
	`^\p{Lu}[^.]*$`,
	`^\d+\.?\s+\p{Lu}[^.]*$`,
	`^[IVX]+\.?\s+\p{Lu}[^.]*$`,
	`^[A-Z]\)\s+\p{Lu}[^.]*$`,
)

const maxHeadingLength = 100

var seedKeywords = map[models.ContentType][]string{
	models.ContentPresentation:   {"école", "formation", "mission", "vision", "établissement"},
	models.ContentAdmission:      {"admission", "conditions", "prérequis", "critères", "bac"},
	models.ContentProcedures:     {"candidature", "inscription", "dossier", "concours", "sélection"},
	models.ContentGradeThreshold: {"seuil", "moyenne", "note", "minimum", "barème"},
	models.ContentCareers:        {"métier", "emploi", "carrière", "débouché", "profession"},
	models.ContentCurriculum:     {"programme", "module", "matière", "cursus", "spécialisation"},
	models.ContentFees:           {"frais", "scolarité", "paiement", "bourse", "tarif"},
}

var keywordStopwords = map[string]bool{
	"cette": true, "dans": true, "avec": true, "pour": true, "sont": true,
	"leurs": true, "nous": true, "vous": true, "elle": true, "elles": true,
	"tous": true, "toutes": true, "ainsi": true, "entre": true, "autres": true,
	"peuvent": true, "chaque": true, "depuis": true, "selon": true, "aussi": true,
}

var frequentWordRe = regexp.MustCompile(`\pL{5,}`)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
