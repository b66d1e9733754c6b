package editor

import (
	"qservice/api/internal/report"
)

// StartDrying stamps today's date and moves the case into the drying stage.
func (e *Editor) StartDrying() (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		r.DryingStarted = e.today()
		r.Status = report.StatusDrying
		return nil
	})
}

// EndDrying stamps today's date once every device has an end date, end
// reading and hours. Otherwise nothing changes and the incomplete device
// numbers are returned.
func (e *Editor) EndDrying() (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		var incomplete []string
		for _, item := range r.Equipment {
			if len(item.MissingForEnd()) > 0 {
				incomplete = append(incomplete, item.DeviceNumber)
			}
		}
		if len(incomplete) > 0 {
			return &IncompleteEquipmentError{Devices: incomplete}
		}
		r.DryingEnded = e.today()
		return nil
	})
}

// Submit normalises the buffer for an explicit save and returns it.
func (e *Editor) Submit() (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		report.Normalize(r)
		return nil
	})
}

// CloseProject retires the case. It needs explicit confirmation.
func (e *Editor) CloseProject(confirmed bool) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		if !confirmed {
			return ErrConfirmationRequired
		}
		r.Status = report.StatusClosed
		return nil
	})
}

// Reactivate always returns the case to remediation. It needs explicit
// confirmation.
func (e *Editor) Reactivate(confirmed bool) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		if !confirmed {
			return ErrConfirmationRequired
		}
		r.Status = report.StatusRemediation
		return nil
	})
}

// ApplyImport merges a confirmed extraction. Non-empty values win over the
// buffer; the contact list is replaced by exactly four rows.
func (e *Editor) ApplyImport(imp report.Import) (report.Report, error) {
	return e.apply(func(r *report.Report) error {
		merge := func(dst *string, v string) {
			if v = report.Clean(v); v != "" {
				*dst = v
			}
		}
		merge(&r.ProjectTitle, imp.ProjectTitle)
		merge(&r.Client, imp.Client)
		merge(&r.Street, imp.Street)
		merge(&r.Zip, imp.Zip)
		merge(&r.City, imp.City)
		merge(&r.LocationDetails, imp.LocationDetails)
		merge(&r.Description, imp.Description)
		merge(&r.DamageType, imp.DamageType)
		merge(&r.Billing.Owner, imp.Billing.Owner)
		merge(&r.Billing.InvoiceEmail, imp.Billing.InvoiceEmail)
		merge(&r.Billing.Reference, imp.Billing.Reference)
		merge(&r.Billing.OrderNumber, imp.Billing.OrderNumber)
		merge(&r.Billing.ExternalRef, imp.Billing.ExternalRef)
		merge(&r.Billing.Company, imp.Billing.Company)
		merge(&r.Billing.Manager, imp.Billing.Manager)
		merge(&r.Billing.ServiceType, imp.Billing.ServiceType)

		contacts := make([]report.Contact, 4)
		for i := 0; i < len(imp.Contacts) && i < len(contacts); i++ {
			c := imp.Contacts[i]
			contacts[i] = report.Contact{
				Name:      report.Clean(c.Name),
				Role:      normalizeRole(c.Role),
				Apartment: report.Clean(c.Apartment),
				Phone:     report.Clean(c.Phone),
			}
		}
		r.Contacts = contacts
		return nil
	})
}
