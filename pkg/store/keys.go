package store

import "fmt"

// Key layout of the single logical table.
//
//	Entity                 PK                SK
//	Organizer profile      ORG#{org_id}      PROFILE
//	Hackathon listing row  ORG#{org_id}      HACK#{hack_id}
//	Hackathon detail       HACK#{hack_id}    META
//	Submission             HACK#{hack_id}    SUB#{sub_id}
//	Agent result           SUB#{sub_id}      SCORE#{agent}
//	Submission summary     SUB#{sub_id}      SUMMARY
//	Cost record            SUB#{sub_id}      COST#{agent}
//	Hackathon cost summary HACK#{hack_id}    COST#SUMMARY
//	Analysis job           HACK#{hack_id}    JOB#{job_id}
//
// GSI1 resolves entity ids without knowing the partition (email → organizer,
// hack_id → detail, sub_id → owning hackathon). GSI2 lists jobs by status in
// creation order.

// Partition and sort key builders.
func OrgPK(orgID string) string   { return "ORG#" + orgID }
func HackPK(hackID string) string { return "HACK#" + hackID }
func SubPK(subID string) string   { return "SUB#" + subID }

const (
	SKProfile     = "PROFILE"
	SKMeta        = "META"
	SKSummary     = "SUMMARY"
	SKCostSummary = "COST#SUMMARY"
)

func HackSK(hackID string) string { return "HACK#" + hackID }
func SubSK(subID string) string   { return "SUB#" + subID }
func JobSK(jobID string) string   { return "JOB#" + jobID }

func ScoreSK(agent string) string { return "SCORE#" + agent }
func CostSK(agent string) string  { return "COST#" + agent }

// SK query prefixes.
const (
	PrefixSub   = "SUB#"
	PrefixJob   = "JOB#"
	PrefixScore = "SCORE#"
	PrefixCost  = "COST#"
	PrefixHack  = "HACK#"
)

// GSI1 key builders.
func GSI1Email(email string) string { return "EMAIL#" + email }
func GSI1Hack(hackID string) string { return "HACKID#" + hackID }
func GSI1Sub(subID string) string   { return "SUBID#" + subID }

// GSI2 key builders: JOB_STATUS#{status} → jobs ordered by created_at.
func GSI2JobStatus(status string) string { return "JOB_STATUS#" + status }

// GSI2JobSK orders jobs within a status partition by creation time; the
// RFC3339 timestamp sorts lexicographically, the id breaks ties.
func GSI2JobSK(createdAtRFC3339, jobID string) string {
	return fmt.Sprintf("%s#%s", createdAtRFC3339, jobID)
}
