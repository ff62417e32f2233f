package models

// ContentType is the closed taxonomy of institutional information kinds
type ContentType string

const (
	ContentPresentation   ContentType = "presentation_generale"
	ContentAdmission      ContentType = "conditions_admission"
	ContentProcedures     ContentType = "procedures_candidature"
	ContentGradeThreshold ContentType = "seuils_notes"
	ContentCareers        ContentType = "debouches_metiers"
	ContentCurriculum     ContentType = "programme_formation"
	ContentStudentLife    ContentType = "vie_etudiante"
	ContentFees           ContentType = "frais_scolarite"
	ContentInfrastructure ContentType = "infrastructure"
	ContentPartnerships   ContentType = "partenariats"
	ContentContact        ContentType = "contact_info"
	ContentOther          ContentType = "autre"
)

// ContentTypes lists every classified type in scoring order, ContentOther excluded
var ContentTypes = []ContentType{
	ContentPresentation,
	ContentAdmission,
	ContentProcedures,
	ContentGradeThreshold,
	ContentCareers,
	ContentCurriculum,
	ContentStudentLife,
	ContentFees,
	ContentInfrastructure,
	ContentPartnerships,
	ContentContact,
}

// ParseContentType maps a stored string back to the enum, unknown values become ContentOther
func ParseContentType(s string) ContentType {
	for _, ct := range ContentTypes {
		if string(ct) == s {
			return ct
		}
	}
	return ContentOther
}

// InstitutionType is the closed taxonomy of institution categories
type InstitutionType string

const (
	InstitutionEngineering       InstitutionType = "engineering_school"
	InstitutionBusiness          InstitutionType = "business_school"
	InstitutionSpecialized       InstitutionType = "specialized_institute"
	InstitutionPrivateUniversity InstitutionType = "private_university"
	InstitutionOther             InstitutionType = "other"
)

// SearchMode selects which retrieval legs run
type SearchMode string

const (
	ModeAuto        SearchMode = "auto"
	ModeVectorOnly  SearchMode = "vector_only"
	ModeKeywordOnly SearchMode = "keyword_only"
	ModeHybrid      SearchMode = "hybrid"
)

// ParseSearchMode accepts the canonical names and a few short aliases
func ParseSearchMode(s string) (SearchMode, bool) {
	switch s {
	case "", "auto":
		return ModeAuto, true
	case "vector", "vector_only":
		return ModeVectorOnly, true
	case "keyword", "keyword_only":
		return ModeKeywordOnly, true
	case "hybrid":
		return ModeHybrid, true
	}
	return "", false
}

// QueryType is the rule-based classification of a user query
type QueryType string

const (
	QueryFactual     QueryType = "factual"
	QueryConceptual  QueryType = "conceptual"
	QueryProcedural  QueryType = "procedural"
	QueryComparative QueryType = "comparative"
)
