package invoice

import (
	"strconv"
	"strings"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var persianPrinter = message.NewPrinter(language.Persian)

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

// FormatToman renders an integral toman amount grouped by thousands in
// Persian digits, suffixed with the currency word: 25220000 becomes
// «۲۵٬۲۲۰٬۰۰۰ تومان».
func FormatToman(amount int64) string {
	return persianPrinter.Sprintf("%d", amount) + " تومان"
}

// FormatDate renders a long-form Jalali calendar date in Persian digits,
// e.g. «۲۴ آذر ۱۴۰۴».
func FormatDate(t time.Time) string {
	pt := ptime.New(t)
	day := persianDigits.Replace(strconv.Itoa(pt.Day()))
	year := persianDigits.Replace(strconv.Itoa(pt.Year()))
	return day + " " + pt.Month().String() + " " + year
}

// FormatQuantity renders an item quantity in Persian digits.
func FormatQuantity(q int) string {
	return persianDigits.Replace(strconv.Itoa(q))
}
