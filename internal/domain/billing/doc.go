// Package billing holds the invoice mirror of the sync engine.
//
// Invoices are posted customer invoices pulled from the upstream ERP and
// stored read-only for clinic account views. The sync engine owns every
// field; nothing on an invoice is ever edited locally, and the engine never
// writes invoices back to the ERP.
//
// An invoice's clinic link is resolved through the identity mapping of its
// ERP partner. When the partner is not mapped yet the invoice is stored
// unlinked and picked up again on a later run.
package billing
