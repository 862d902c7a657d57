// Package gateway is the contract between the console and the remote REST
// backend that owns all persisted data.
package gateway

import (
	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
)

// Gateway is the full set of remote operations. Each service depends only on
// its own slice of it.
type Gateway interface {
	customers.Gateway
	jobs.Gateway
	invoicing.Gateway
}

// Operation names, used in errors, logs and metrics.
const (
	OpCreateCustomer    = "CreateCustomer"
	OpListCustomers     = "ListCustomers"
	OpListJobs          = "ListJobs"
	OpGetJob            = "GetJob"
	OpCreateJob         = "CreateJob"
	OpCreateAppointment = "CreateAppointment"
	OpUpdateJobStatus   = "UpdateJobStatus"
	OpGenerateInvoice   = "GenerateInvoice"
	OpListInvoices      = "ListInvoices"
	OpRecordPayment     = "RecordPayment"
)
