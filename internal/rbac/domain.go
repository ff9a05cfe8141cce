package rbac

// Permission represents an atomic capability.
type Permission struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Module      string `json:"module"`
	Description string `json:"description"`
}
