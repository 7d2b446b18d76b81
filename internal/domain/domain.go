package domain

// Status is the lifecycle state of a borrow request.
type Status string

const (
	StatusWaitingManagerApproval Status = "Waiting_Manager_Approval"
	StatusWaitingPicApproval     Status = "Waiting_PIC_Approval"
	StatusApproved               Status = "Approved"
	StatusSuccess                Status = "Success"
	StatusReturned               Status = "Returned"
	StatusReject                 Status = "Reject"
	StatusCanceled               Status = "Canceled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusWaitingManagerApproval,
	StatusWaitingPicApproval,
	StatusApproved,
	StatusSuccess,
	StatusReturned,
	StatusReject,
	StatusCanceled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// ItemsOut reports whether the request's items are physically with the requester.
func (s Status) ItemsOut() bool {
	return s == StatusApproved || s == StatusSuccess
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusReturned || s == StatusReject || s == StatusCanceled
}

// Decision is the verdict an approver records at a stage.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionReject   Decision = "Reject"
	DecisionRevise   Decision = "Revise"
	DecisionCanceled Decision = "Canceled"
)

var Decisions = []Decision{DecisionApproved, DecisionReject, DecisionRevise, DecisionCanceled}

func (d Decision) Valid() bool {
	for _, v := range Decisions {
		if v == d {
			return true
		}
	}
	return false
}

// ApproverRole names the stage an approval entry was recorded at.
type ApproverRole string

const (
	ApproverManager ApproverRole = "manager"
	ApproverPIC     ApproverRole = "pic"
)

type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CategoryID  string `json:"category_id,omitempty"`
	IsAvailable bool   `json:"is_available"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Grade     string   `json:"grade,omitempty"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type RequestLine struct {
	ItemID      string `json:"item_id"`
	Quantity    int    `json:"quantity"`
	ItemName    string `json:"item_name,omitempty"`
	IsAvailable bool   `json:"is_available"`
}

type Request struct {
	ID          string          `json:"id"`
	RequesterID string          `json:"requester_id"`
	ManagerID   string          `json:"manager_id"`
	Lines       []RequestLine   `json:"lines"`
	StartDate   string          `json:"start_date" format:"date"`
	EndDate     string          `json:"end_date" format:"date"`
	Comment     string          `json:"comment,omitempty"`
	Status      Status          `json:"status"`
	Approvals   []ApprovalEntry `json:"approvals"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
	ReturnedAt  *string         `json:"returned_at,omitempty" format:"date-time"`
}

// ItemIDs returns the line item ids in line order.
func (r Request) ItemIDs() []string {
	ids := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.ItemID)
	}
	return ids
}

type ApprovalEntry struct {
	ID           string       `json:"id"`
	RequestID    string       `json:"request_id"`
	Seq          int          `json:"seq"`
	ApproverID   string       `json:"approver_id"`
	ApproverRole ApproverRole `json:"approver_role"`
	Decision     Decision     `json:"decision"`
	Comment      string       `json:"comment,omitempty"`
	DecidedAt    string       `json:"decided_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
