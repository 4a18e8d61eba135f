// Package model defines domain entities for the application.
package model

// Resources is the per-account resource vector: the quotas an account can
// spend on server plans. RAM and disk are megabytes, CPU is a percentage
// share; the remaining components are slot counts.
type Resources struct {
	RAM         int64 `json:"ram"`
	CPU         int64 `json:"cpu"`
	Disk        int64 `json:"disk"`
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

// Add returns the component-wise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		RAM:         r.RAM + other.RAM,
		CPU:         r.CPU + other.CPU,
		Disk:        r.Disk + other.Disk,
		Databases:   r.Databases + other.Databases,
		Allocations: r.Allocations + other.Allocations,
		Backups:     r.Backups + other.Backups,
	}
}

// Covers reports whether r is sufficient for a plan requiring need.
// Only ram/cpu/disk are compared; database, allocation and backup slots are
// feature limits on the panel side and are not gated here.
func (r Resources) Covers(need Resources) bool {
	return r.RAM >= need.RAM && r.CPU >= need.CPU && r.Disk >= need.Disk
}

// IsZero reports whether every component is zero.
func (r Resources) IsZero() bool {
	return r == Resources{}
}
