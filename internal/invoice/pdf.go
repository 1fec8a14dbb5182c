package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageMargin = 12.0
	usableW    = 210 - 2*pageMargin
	rowH       = 8.0
)

// Line-item column widths, right-to-left: product name 40%, then quantity,
// unit price, discount and line total at 15% each.
var colW = [5]float64{usableW * 0.40, usableW * 0.15, usableW * 0.15, usableW * 0.15, usableW * 0.15}

var colTitles = [5]string{"شرح کالا", "تعداد", "قیمت واحد", "تخفیف", "جمع"}

const footerDisclaimer = "این فاکتور به صورت الکترونیکی صادر شده و بدون مهر و امضا معتبر است."

// PDFRenderer lays invoices out as single-page A4 PDF documents.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer constructs a PDFRenderer. fontPath points at a TTF with
// Persian glyph coverage; when empty the built-in Helvetica is used, which
// only renders the numeric fields legibly.
func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

// Render produces the invoice as PDF bytes.
func (r *PDFRenderer) Render(vm ViewModel) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Filename(vm), true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)

	family := "Helvetica"
	if r.fontPath != "" {
		family = "invoice"
		pdf.AddUTF8Font(family, "", r.fontPath)
		pdf.AddUTF8Font(family, "B", r.fontPath)
	}

	pdf.AddPage()
	pdf.RTL()

	r.header(pdf, family, vm)
	r.infoStrip(pdf, family, vm)
	r.partyBoxes(pdf, family, vm)
	r.itemsTable(pdf, family, vm)
	r.summary(pdf, family, vm)
	r.notes(pdf, family, vm)
	r.footer(pdf, family)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", vm.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

// header puts the seller identity on the right and the invoice title,
// number and payment badge on the left.
func (r *PDFRenderer) header(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	top := pdf.GetY()

	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(usableW/2, 7, vm.Seller.Name, "", 1, "R", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(usableW/2, 5, vm.Seller.Phone, "", 1, "R", false, 0, "")
	pdf.CellFormat(usableW/2, 5, vm.Seller.Address, "", 1, "R", false, 0, "")
	sellerBottom := pdf.GetY()

	pdf.SetY(top)
	pdf.SetFont(family, "B", 16)
	pdf.CellFormat(usableW, 8, "فاکتور فروش", "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 10)
	pdf.CellFormat(usableW, 6, vm.InvoiceNumber, "", 1, "L", false, 0, "")

	badge := "پرداخت نشده"
	pdf.SetFillColor(220, 80, 80)
	if vm.IsPaid {
		badge = "پرداخت شده"
		pdf.SetFillColor(70, 160, 90)
	}
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(family, "B", 9)
	pdf.CellFormat(34, 6, badge, "", 1, "CM", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	if pdf.GetY() < sellerBottom {
		pdf.SetY(sellerBottom)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) infoStrip(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	pdf.SetFont(family, "", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(usableW/2, rowH, "تاریخ صدور: "+FormatDate(vm.IssueDate), "1", 0, "C", true, 0, "")
	pdf.CellFormat(usableW/2, rowH, "مهلت پرداخت: "+FormatDate(vm.DueDate), "1", 1, "C", true, 0, "")
	pdf.Ln(4)
}

// partyBoxes draws the customer and seller information boxes side by side.
func (r *PDFRenderer) partyBoxes(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	boxW := usableW/2 - 2
	top := pdf.GetY()

	r.partyBox(pdf, family, pageMargin, top, boxW, "مشخصات خریدار", vm.Customer)
	r.partyBox(pdf, family, pageMargin+boxW+4, top, boxW, "مشخصات فروشنده", vm.Seller)

	pdf.SetY(top + 34)
	pdf.Ln(2)
}

func (r *PDFRenderer) partyBox(pdf *fpdf.Fpdf, family string, x, y, w float64, title string, p Party) {
	pdf.SetXY(x, y)
	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(w, 6, title, "1", 2, "R", true, 0, "")

	lines := []string{p.Name, p.Phone, p.Email, p.Address}
	if p.TaxID != "" {
		lines = append(lines, "شناسه مالیاتی: "+p.TaxID)
	}

	pdf.SetFont(family, "", 9)
	body := ""
	for _, line := range lines {
		if line == "" {
			continue
		}
		body += line + "\n"
	}
	pdf.SetX(x)
	pdf.MultiCell(w, 5, body, "1", "R", false)
}

func (r *PDFRenderer) itemsTable(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	pdf.SetFont(family, "B", 9)
	pdf.SetFillColor(60, 60, 60)
	pdf.SetTextColor(255, 255, 255)
	for i, title := range colTitles {
		ln := 0
		if i == len(colTitles)-1 {
			ln = 1
		}
		pdf.CellFormat(colW[i], rowH, title, "1", ln, "C", true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont(family, "", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, item := range vm.Items {
		fill := i%2 == 1
		cells := [5]string{
			item.ProductName,
			FormatQuantity(item.Quantity),
			FormatToman(item.UnitPrice),
			FormatToman(item.Discount),
			FormatToman(item.LineTotal),
		}
		for j, cell := range cells {
			align := "C"
			if j == 0 {
				align = "R"
			}
			ln := 0
			if j == len(cells)-1 {
				ln = 1
			}
			pdf.CellFormat(colW[j], rowH-1, cell, "1", ln, align, fill, 0, "")
		}
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) summary(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	labelW := usableW * 0.30
	valueW := usableW * 0.30
	indent := usableW - labelW - valueW

	rows := []struct {
		label  string
		amount int64
	}{
		{"جمع کل", vm.Subtotal},
		{"تخفیف", vm.Discount},
		{"مالیات", vm.Tax},
		{"هزینه ارسال", vm.ShippingCost},
	}

	pdf.SetFont(family, "", 10)
	for _, row := range rows {
		pdf.CellFormat(indent, 7, "", "", 0, "", false, 0, "")
		pdf.CellFormat(labelW, 7, row.label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, 7, FormatToman(row.amount), "1", 1, "L", false, 0, "")
	}

	pdf.SetFont(family, "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(indent, 8, "", "", 0, "", false, 0, "")
	pdf.CellFormat(labelW, 8, "مبلغ قابل پرداخت", "1", 0, "R", true, 0, "")
	pdf.CellFormat(valueW, 8, FormatToman(vm.Total), "1", 1, "L", true, 0, "")
	pdf.Ln(4)
}

func (r *PDFRenderer) notes(pdf *fpdf.Fpdf, family string, vm ViewModel) {
	if vm.Notes == "" {
		return
	}
	pdf.SetFont(family, "B", 10)
	pdf.CellFormat(usableW, 6, "توضیحات", "", 1, "R", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.MultiCell(usableW, 5, vm.Notes, "1", "R", false)
}

func (r *PDFRenderer) footer(pdf *fpdf.Fpdf, family string) {
	pdf.SetY(-28)
	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(usableW, 5, footerDisclaimer, "T", 1, "C", false, 0, "")
	stamp := "تاریخ چاپ: " + FormatDate(time.Now())
	pdf.CellFormat(usableW, 5, stamp, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}
