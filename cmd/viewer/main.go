package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"meet-lab/internal"
	"meet-lab/repositories"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	room := flag.String("room", "", "Print the chat history of this room")
	pages := flag.Int("pages", 1, "Number of history pages to print")
	flag.Parse()

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the server holds the lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromLevel(slog.LevelWarn)
	if *room == "" {
		printRooms(repositories.NewRoomRepository(db, logger, config.RoomTTL))
		return
	}
	printMessages(repositories.NewMessageRepository(db, logger, config.LimitMessages, 0), *room, *pages)
}

func printRooms(repository *repositories.RoomRepository) {
	records, err := repository.List()
	if err != nil {
		log.Fatal(err)
	}
	table := newTable("Room", "Created", "Meeting point")
	for _, record := range records {
		destination := "-"
		if record.Destination != nil {
			destination = fmt.Sprintf("%.5f, %.5f", record.Destination.Lat, record.Destination.Lng)
		}
		table.Append([]string{record.RoomKey, record.CreatedAt.Format(time.RFC822), destination})
	}
	table.Render()
	fmt.Printf("%d room(s)\n", len(records))
}

func printMessages(repository repositories.IMessageRepository, room string, pages int) {
	table := newTable("Time", "Author", "Message", "Reply to")
	var cursor *string
	for page := 0; page < pages; page++ {
		messages, next, err := repository.GetMessages(room, cursor)
		if err != nil {
			log.Fatal(err)
		}
		for _, m := range messages {
			author := m.Author
			if m.System {
				author = "[" + author + "]"
			}
			table.Append([]string{
				m.At.Local().Format("15:04:05"),
				author,
				strings.ReplaceAll(m.Content, "\n", " "),
				lo.FromPtrOr(m.ReplyTo, "-"),
			})
		}
		if next == nil {
			break
		}
		cursor = next
	}
	table.Render()
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}
