package shared

// Table names a console data table. Each table lists one entity kind.
type Table string

const (
	TableCustomers Table = "customers"
	TableJobs      Table = "jobs"
	TableInvoices  Table = "invoices"
)

// IsValid reports whether t is a known table.
func (t Table) IsValid() bool {
	switch t {
	case TableCustomers, TableJobs, TableInvoices:
		return true
	default:
		return false
	}
}
