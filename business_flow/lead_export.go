package businessflow

import (
	"context"
	"strconv"
	"strings"

	"github.com/amirphl/lead-manager/app/dto"
	"github.com/amirphl/lead-manager/utils"
	"github.com/xuri/excelize/v2"
)

const (
	leadExportSheet       = "Leads"
	leadExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var leadExportHeader = []string{
	"id", "name", "company", "source", "primary_email", "other_emails",
	"primary_phone", "primary_phone_whatsapp", "other_phones", "notes", "created_at",
}

// ExportLeads renders the filtered lead list as an XLSX workbook with one row per lead
func (f *LeadFlowImpl) ExportLeads(ctx context.Context, req *dto.ListLeadsRequest, metadata *ClientMetadata) (string, []byte, error) {
	list, err := f.ListLeads(ctx, req, metadata)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), leadExportSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}
	header := leadExportHeader
	if err := xl.SetSheetRow(leadExportSheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for i, lead := range list.Leads {
		record := leadExportRecord(lead)
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(leadExportSheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := "leads_" + utils.UTCNow().Format("20060102_150405") + ".xlsx"
	return filename, buf.Bytes(), nil
}

// ExportContentType is the media type of the workbook returned by ExportLeads
func ExportContentType() string {
	return leadExportContentType
}

func leadExportRecord(lead dto.LeadDTO) []string {
	var primaryEmail, primaryPhone, whatsapp string
	var otherEmails, otherPhones []string

	for _, e := range lead.Emails {
		if e.IsPrimary && primaryEmail == "" {
			primaryEmail = e.Address
			continue
		}
		otherEmails = append(otherEmails, e.Address)
	}
	for _, p := range lead.Phones {
		if p.IsPrimary && primaryPhone == "" {
			primaryPhone = p.Digits
			whatsapp = strconv.FormatBool(p.IsWhatsApp)
			continue
		}
		otherPhones = append(otherPhones, p.Digits)
	}

	return []string{
		strconv.FormatUint(uint64(lead.ID), 10),
		lead.Name,
		deref(lead.Company),
		deref(lead.Source),
		primaryEmail,
		strings.Join(otherEmails, ", "),
		primaryPhone,
		whatsapp,
		strings.Join(otherPhones, ", "),
		deref(lead.Notes),
		lead.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
