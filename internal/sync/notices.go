package sync

import (
	"fmt"
	"strings"
	"time"
)

// User-facing notices.
const (
	msgNotEnabled      = "ttsu sync is not enabled.\n\nRun \"ttsu-sync setup\" once to configure."
	msgAuthExpired     = "Google Drive authorization has expired. Run \"ttsu-sync setup\" once to refresh authorization."
	msgFolderNotFound  = "Could not find ttsu data folder in Google Drive.\n\nMake sure ttsu has exported data first!"
	msgAlreadyDisabled = "ttsu sync is already disabled."
	msgDisableConfirm  = "Disable automatic ttsu sync from Google Drive?\n\nYou can re-enable it anytime."
	msgDisabled        = "ttsu sync has been disabled."
	msgNoBookFolders   = "No book folders found in ttsu Google Drive."
	msgNoReadingData   = "No reading data found in ttsu Google Drive."

	msgReloadWarning = "BATCH LOAD ALL FROM TTSU\n\nThis will:\n" +
		"1. Load ALL reading data from ttsu Google Drive\n" +
		"2. OVERWRITE your existing data\n" +
		"3. This action CANNOT be undone\n\n" +
		"Are you sure you want to continue?"
	msgReloadFinal = "FINAL CONFIRMATION\n\nYour current reading data will be PERMANENTLY REPLACED " +
		"with all data from ttsu.\n\nConfirm to proceed or decline to abort."
)

// maxListedBooks caps the titles named in the reload notice.
const maxListedBooks = 10

func setupNotice(interval time.Duration) string {
	return fmt.Sprintf("ttsu sync enabled! It will auto-sync every %s.", humanInterval(interval))
}

func setupPassFailedNotice(interval time.Duration, err error) string {
	return fmt.Sprintf("ttsu sync enabled, but the first sync failed:\n\n%v\n\nIt will retry every %s.",
		err, humanInterval(interval))
}

func setupFailedNotice(err error) string {
	return "Failed to setup ttsu sync:\n\n" + err.Error()
}

func syncCompleteNotice(imported int, lastSync time.Time) string {
	last := "Never"
	if !lastSync.IsZero() {
		last = lastSync.Local().Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf("Sync complete!\n\nNew sessions imported: %d\nLast sync: %s", imported, last)
}

func syncFailedNotice(err error) string {
	return "Sync failed:\n\n" + err.Error()
}

func reloadFailedNotice(err error) string {
	return "Failed to batch load from ttsu:\n\n" + err.Error()
}

func reloadCompleteNotice(imported int, titles []string) string {
	listed := titles
	if len(listed) > maxListedBooks {
		listed = listed[:maxListedBooks]
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Batch Load Complete!\n\nImported: %d reading sessions\nBooks: %s",
		imported, strings.Join(listed, ", "))

	if extra := len(titles) - maxListedBooks; extra > 0 {
		fmt.Fprintf(&b, "\n...and %d more books", extra)
	}

	b.WriteString("\n\nYour data has been overwritten with ttsu data.")

	return b.String()
}

// humanInterval renders whole minutes as "5 minutes" and anything else with
// Duration.String.
func humanInterval(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}

	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}

	return "minute"
}
