package models

type RoleType string

const (
	RoleOperator   RoleType = "OPERATOR"
	RoleSupervisor RoleType = "SUPERVISOR"
	RoleAdmin      RoleType = "ADMIN"
)

type EfficiencyType string

const (
	EfficiencyTypeTimeBased     EfficiencyType = "TIME_BASED"
	EfficiencyTypeQuantityBased EfficiencyType = "QUANTITY_BASED"
	EfficiencyTypeTaskBased     EfficiencyType = "TASK_BASED"
)

// Job card status: IC = Incomplete, C = Complete
type JobCardStatus string

const (
	JobCardStatusIncomplete JobCardStatus = "IC"
	JobCardStatusComplete   JobCardStatus = "C"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

type SourceType string

const (
	SourceTechnician SourceType = "TECHNICIAN"
	SourceSupervisor SourceType = "SUPERVISOR"
)

type FlagType string

const (
	FlagTypeDuplication    FlagType = "DUPLICATION"
	FlagTypeOutsideMsd     FlagType = "OUTSIDE_MSD"
	FlagTypeAwc            FlagType = "AWC"
	FlagTypeSplitCandidate FlagType = "SPLIT_CANDIDATE"
	FlagTypeQtyMismatch    FlagType = "QTY_MISMATCH"
)

func IsValidRole(r string) bool {
	switch RoleType(r) {
	case RoleOperator, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

func IsValidEfficiencyType(t string) bool {
	switch EfficiencyType(t) {
	case EfficiencyTypeTimeBased, EfficiencyTypeQuantityBased, EfficiencyTypeTaskBased:
		return true
	}
	return false
}

func IsValidJobCardStatus(s string) bool {
	switch JobCardStatus(s) {
	case JobCardStatusIncomplete, JobCardStatusComplete:
		return true
	}
	return false
}

func IsValidSource(s string) bool {
	switch SourceType(s) {
	case SourceTechnician, SourceSupervisor:
		return true
	}
	return false
}
