package model

// ReportCounterSeed is the first report number ever issued.
const ReportCounterSeed = 1000

// ReportCounter is the single-row counter that mints sequential DMT
// report numbers. The row is seeded once at startup; allocation happens
// through one atomic increment statement, never a read-then-write pair.
type ReportCounter struct {
	ID         int `gorm:"primaryKey" json:"id"`
	NextNumber int `gorm:"not null" json:"next_number"`
}
