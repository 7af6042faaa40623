// Package stages holds the single canonical lifecycle table: stage order,
// valid transitions, display metadata and the roles allowed to perform
// each stage. Every caller consults these tables instead of keeping its own.
package stages

import (
	"fraudcase/internal/models"
)

// Definition describes one lifecycle stage
type Definition struct {
	Stage       models.Stage  `json:"stage"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Order       int           `json:"order"`
	Roles       []models.Role `json:"roles"`
	Terminal    bool          `json:"terminal"`
}

// Canonical is the main-line stage sequence. Rejected sits outside it.
var Canonical = []models.Stage{
	models.StageReportSubmitted,
	models.StageInformationVerified,
	models.StageCRPCGenerated,
	models.StageEmailsSent,
	models.StageAuthorized,
	models.StageAssignedToPolice,
	models.StageUnderInvestigation,
	models.StageEvidenceCollected,
	models.StageResolved,
	models.StageClosed,
}

var next = map[models.Stage][]models.Stage{
	models.StageReportSubmitted:     {models.StageInformationVerified, models.StageRejected},
	models.StageRejected:            {models.StageReportSubmitted},
	models.StageInformationVerified: {models.StageCRPCGenerated, models.StageUnderInvestigation},
	models.StageCRPCGenerated:       {models.StageEmailsSent},
	models.StageEmailsSent:          {models.StageAuthorized, models.StageUnderInvestigation},
	models.StageAuthorized:          {models.StageAssignedToPolice},
	models.StageAssignedToPolice:    {models.StageUnderInvestigation},
	models.StageUnderInvestigation:  {models.StageEvidenceCollected, models.StageResolved},
	models.StageEvidenceCollected:   {models.StageResolved},
	models.StageResolved:            {models.StageClosed},
	models.StageClosed:              nil,
}

var (
	adminOnly  = []models.Role{models.RoleAdmin}
	policeOnly = []models.Role{models.RolePolice}
)

var definitions = map[models.Stage]Definition{
	models.StageReportSubmitted: {
		Label:       "Report Submitted",
		Description: "Complaint received and registered",
		Roles:       []models.Role{models.RoleUser, models.RoleAdmin},
	},
	models.StageInformationVerified: {
		Label:       "Information Verified",
		Description: "Complaint details and suspect identifiers confirmed",
		Roles:       []models.Role{models.RoleAdmin, models.RoleSystem},
	},
	models.StageCRPCGenerated: {
		Label:       "CrPC Notice Generated",
		Description: "Legal notice document generated for the authorities",
		Roles:       []models.Role{models.RoleAdmin, models.RoleSystem},
	},
	models.StageEmailsSent: {
		Label:       "Authorities Notified",
		Description: "Legal notice sent to telecom, banking and nodal cyber cell contacts",
		Roles:       adminOnly,
	},
	models.StageAuthorized: {
		Label:       "Authorized",
		Description: "Case authorized for police action",
		Roles:       adminOnly,
	},
	models.StageAssignedToPolice: {
		Label:       "Assigned to Police",
		Description: "Case assigned to an investigating officer",
		Roles:       adminOnly,
	},
	models.StageUnderInvestigation: {
		Label:       "Under Investigation",
		Description: "Police investigation in progress",
		Roles:       policeOnly,
	},
	models.StageEvidenceCollected: {
		Label:       "Evidence Collected",
		Description: "Investigating officer has collected evidence",
		Roles:       policeOnly,
	},
	models.StageResolved: {
		Label:       "Resolved",
		Description: "Investigation concluded",
		Roles:       policeOnly,
	},
	models.StageClosed: {
		Label:       "Closed",
		Description: "Case closed",
		Roles:       []models.Role{models.RoleAdmin, models.RolePolice},
		Terminal:    true,
	},
	models.StageRejected: {
		Label:       "Rejected",
		Description: "Complaint rejected and returned to the reporter",
		Roles:       adminOnly,
	},
}

func init() {
	for i, stage := range Canonical {
		def := definitions[stage]
		def.Stage = stage
		def.Order = i + 1
		definitions[stage] = def
	}
	def := definitions[models.StageRejected]
	def.Stage = models.StageRejected
	definitions[models.StageRejected] = def
}

// Known reports whether stage is part of the lifecycle vocabulary
func Known(stage models.Stage) bool {
	_, ok := definitions[stage]
	return ok
}

// Lookup returns the definition for stage
func Lookup(stage models.Stage) (Definition, bool) {
	def, ok := definitions[stage]
	return def, ok
}

// Label returns the display label for stage, or the raw name if unknown
func Label(stage models.Stage) string {
	if def, ok := definitions[stage]; ok {
		return def.Label
	}
	return string(stage)
}

// Order returns the position of stage in the canonical sequence.
// Rejected and unknown stages have order 0.
func Order(stage models.Stage) int {
	return definitions[stage].Order
}

// Next returns the stages reachable from current
func Next(current models.Stage) []models.Stage {
	out := make([]models.Stage, len(next[current]))
	copy(out, next[current])
	return out
}

// CanTransition reports whether target is an allowed next stage from current
func CanTransition(current, target models.Stage) bool {
	for _, candidate := range next[current] {
		if candidate == target {
			return true
		}
	}
	return false
}

// Permits reports whether role may perform stage
func Permits(role models.Role, stage models.Stage) bool {
	for _, allowed := range definitions[stage].Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// All returns every stage definition, canonical order first, rejected last
func All() []Definition {
	defs := make([]Definition, 0, len(definitions))
	for _, stage := range Canonical {
		defs = append(defs, definitions[stage])
	}
	return append(defs, definitions[models.StageRejected])
}
