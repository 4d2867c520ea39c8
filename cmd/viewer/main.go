package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// viewer dumps stored conversations and messages as a terminal table. It
// opens the store read-only so it can run alongside the server.
func main() {
	dbPath := flag.String("db", "/tmp/duochat", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, conv:, user:)")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	color.Cyanln("duochat viewer:", *dbPath, "prefix", *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Conversation", "Time", "Author", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var body struct {
					ConversationID string    `json:"conversation_id"`
					Author         string    `json:"author"`
					Content        string    `json:"content"`
					At             time.Time `json:"at"`
				}
				if err := json.Unmarshal(v, &body); err != nil {
					table.Append([]string{string(item.Key()), "", "", fmt.Sprintf("<%d raw bytes>", len(v))})
					return nil
				}
				conv := body.ConversationID
				if len(conv) > 8 {
					conv = conv[:8]
				}
				table.Append([]string{conv, body.At.Format("15:04:05"), body.Author, body.Content})
				return nil
			})
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table.Render()
	color.Greenln(count, "entries")
}
