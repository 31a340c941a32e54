package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// exportPendingListingsHandler writes the imported listings awaiting review
// to an xlsx workbook, for operators who triage in a spreadsheet.
func exportPendingListingsHandler(c *gin.Context) {
	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 5000 {
			limit = parsed
		}
	}

	listings, err := models.ListPendingImportedListings(c.Request.Context(), config.GetDB(),
		models.ExternalSourceSpacest, limit)
	if err != nil {
		config.LogError(config.GetLogger(), "export", "exportPendingListingsHandler", "query failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not load listings"})
		return
	}

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "ExternalId")
	f.SetCellValue("Sheet1", "B1", "Title")
	f.SetCellValue("Sheet1", "C1", "Category")
	f.SetCellValue("Sheet1", "D1", "MonthlyRent")
	f.SetCellValue("Sheet1", "E1", "Bedrooms")
	f.SetCellValue("Sheet1", "F1", "Address")
	f.SetCellValue("Sheet1", "G1", "City")
	f.SetCellValue("Sheet1", "H1", "LastSyncedAt")

	for i, l := range listings {
		row := fmt.Sprint(i + 2)
		f.SetCellValue("Sheet1", "A"+row, utils.DereferencePtr(l.ExternalListingId, ""))
		f.SetCellValue("Sheet1", "B"+row, l.Title)
		f.SetCellValue("Sheet1", "C"+row, l.MappedCategory)
		f.SetCellValue("Sheet1", "D"+row, l.MonthlyRent.StringFixed(2))
		f.SetCellValue("Sheet1", "E"+row, l.Bedrooms)
		f.SetCellValue("Sheet1", "F"+row, l.Address)
		f.SetCellValue("Sheet1", "G"+row, l.City)
		if l.LastSyncedAt != nil {
			f.SetCellValue("Sheet1", "H"+row, l.LastSyncedAt.Format("2006-01-02 15:04"))
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="pending-listings.xlsx"`)
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "export", "exportPendingListingsHandler", "workbook write failed", nil, err)
	}
}
