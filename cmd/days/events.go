package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"days/internal/countdown"
	"days/internal/media"
	"days/internal/model"
	"days/internal/query"
	"days/internal/web"
)

// eventFlags are shared by add and update.
type eventFlags struct {
	title       string
	date        string
	start       string
	end         string
	allDay      bool
	description string
	location    string
	category    string
	image       string

	repeat     string
	interval   int
	count      int
	until      string
	byDay      []int
	byMonthDay []int
	noRepeat   bool
}

func (f *eventFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.title, "title", "t", "", "Event title")
	fl.StringVarP(&f.date, "date", "d", "", "Date, YYYY-MM-DD or YYYY-MM-DDTHH:MM")
	fl.StringVar(&f.start, "start", "", "Start time HH:MM (makes the event timed)")
	fl.StringVar(&f.end, "end", "", "End time HH:MM")
	fl.BoolVar(&f.allDay, "all-day", false, "Make the event all-day (clears times)")
	fl.StringVar(&f.description, "description", "", "Free-text description")
	fl.StringVar(&f.location, "location", "", "Where it happens")
	fl.StringVar(&f.category, "category", "", "Category id")
	fl.StringVar(&f.image, "image", "", "Image file or URL")

	fl.StringVar(&f.repeat, "repeat", "", "daily, weekly, monthly or yearly")
	fl.IntVar(&f.interval, "interval", 1, "Repeat every N periods")
	fl.IntVar(&f.count, "count", 0, "Stop after N occurrences")
	fl.StringVar(&f.until, "until", "", "Last possible date, YYYY-MM-DD")
	fl.IntSliceVar(&f.byDay, "by-day", nil, "Weekdays for weekly rules (0=Sunday)")
	fl.IntSliceVar(&f.byMonthDay, "by-month-day", nil, "Days of the month for monthly rules")
}

func (f *eventFlags) recurrence() *model.Recurrence {
	if f.repeat == "" {
		return nil
	}
	r := &model.Recurrence{
		Frequency:  model.Frequency(strings.ToUpper(f.repeat)),
		Interval:   f.interval,
		Count:      f.count,
		ByDay:      f.byDay,
		ByMonthDay: f.byMonthDay,
	}
	if f.until != "" {
		u := model.ParseEventDate(f.until)
		r.Until = &u
	}
	return r
}

func (f *eventFlags) pickImage(cmd *cobra.Command) (string, error) {
	if f.image == "" {
		return "", nil
	}
	uri, err := media.For(f.image).PickImage(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("image: %w", err)
	}
	return uri, nil
}

func newAddCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			image, err := f.pickImage(cmd)
			if err != nil {
				return err
			}
			in := model.EventInput{
				Title:       f.title,
				EventDate:   model.ParseEventDate(f.date),
				Description: f.description,
				Location:    f.location,
				CategoryID:  f.category,
				ImageURL:    image,
				Recurrence:  f.recurrence(),
				ScheduleInput: model.ScheduleInput{
					IsAllDay:  f.allDay || (f.start == "" && f.end == ""),
					StartTime: f.start,
					EndTime:   f.end,
				},
			}

			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			rec, err := s.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printRecord(a.query(), rec)
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of an event; unspecified fields are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			var p model.Patch
			if fl.Changed("title") {
				p.Title = &f.title
			}
			if fl.Changed("date") {
				d := model.ParseEventDate(f.date)
				p.EventDate = &d
			}
			switch {
			case f.allDay:
				p.Schedule = &model.ScheduleInput{IsAllDay: true}
			case fl.Changed("start") || fl.Changed("end"):
				p.Schedule = &model.ScheduleInput{StartTime: f.start, EndTime: f.end}
			}
			if fl.Changed("description") {
				p.Description = &f.description
			}
			if fl.Changed("location") {
				p.Location = &f.location
			}
			if fl.Changed("category") {
				p.CategoryID = &f.category
			}
			if fl.Changed("image") {
				image, err := f.pickImage(cmd)
				if err != nil {
					return err
				}
				p.ImageURL = &image
			}
			p.Recurrence = f.recurrence()
			p.ClearRecurrence = f.noRepeat
			if p.Empty() {
				return errors.New("nothing to update")
			}

			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			rec, err := s.Update(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return a.printRecord(a.query(), rec)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.noRepeat, "no-repeat", false, "Remove the repeat rule")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID...",
		Aliases: []string{"rm"},
		Short:   "Delete events (unknown ids are ignored)",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			for _, id := range args {
				if err := s.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "removed", id)
			}
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print one event as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			rec, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printRecord(a.query(), rec)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		status, category, search, from, to, sort, order string
		asJSON                                          bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events with their countdowns",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := web.ParseFilter(status, category, search, from, to, sort, order, a.loc)
			if err != nil {
				return err
			}
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			records, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			now := a.now()
			items := a.query().Filter(records, now, f)
			if asJSON {
				return writeJSON(a.out, web.ViewsOf(items, now))
			}
			return printTable(a.out, items, now)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&status, "status", "all", "all, upcoming or previous")
	fl.StringVar(&category, "category", "", "Only this category id")
	fl.StringVarP(&search, "search", "s", "", "Match title, description or location")
	fl.StringVar(&from, "from", "", "Earliest day, YYYY-MM-DD")
	fl.StringVar(&to, "to", "", "Latest day, YYYY-MM-DD")
	fl.StringVar(&sort, "sort", "date", "date, title or createdAt")
	fl.StringVar(&order, "order", "", "asc or desc")
	fl.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next upcoming event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			records, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			now := a.now()
			next, ok := a.query().Next(records, now)
			if !ok {
				fmt.Fprintln(a.out, "No upcoming events")
				return nil
			}
			c := countdown.Calculate(now, next.At)
			fmt.Fprintf(a.out, "%s\n%s (%s)\n%d months %d days, %d days total\n",
				next.Record.Title, c.Label, countdown.DateLabel(next.At), c.Months, c.Days, c.TotalDaysRemaining)
			return nil
		},
	}
}

func newCalendarCmd(a *app) *cobra.Command {
	var date, month string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show events on a day, or per-day counts for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			records, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			q := a.query()
			now := a.now()

			if date != "" {
				day, err := time.ParseInLocation(time.DateOnly, date, a.loc)
				if err != nil {
					return errors.New("--date must be YYYY-MM-DD")
				}
				return printTable(a.out, q.OnDate(records, day), now)
			}

			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.loc)
			if month != "" {
				if first, err = time.ParseInLocation("2006-01", month, a.loc); err != nil {
					return errors.New("--month must be YYYY-MM")
				}
			}
			printMonth(a.out, first, q.MonthMarks(records, first.Year(), first.Month(), a.loc))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to list, YYYY-MM-DD")
	cmd.Flags().StringVar(&month, "month", "", "Month to summarize, YYYY-MM (default current)")
	return cmd
}

func (a *app) printRecord(q *query.Service, rec model.EventRecord) error {
	now := a.now()
	at, _ := q.Occurrence(rec, now)
	return writeJSON(a.out, web.ViewOf(rec, at, now))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, items []query.Item, now time.Time) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No events")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tCOUNTDOWN\tTITLE")
	for _, it := range items {
		when := countdown.DateLabel(it.At)
		if start, end := it.Record.Times(); start != "" {
			when += " " + start + "-" + end
		}
		c := countdown.Calculate(now, it.At)
		title := model.DisplayTitle(it.Record.Title, 40)
		if it.Record.Recurrence != nil {
			title += " (repeats)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Record.ID, when, c.Label, title)
	}
	return tw.Flush()
}

// printMonth draws a Sunday-first grid; days with events show their count.
func printMonth(w io.Writer, first time.Time, marks map[int]int) {
	fmt.Fprintf(w, "%s\n", first.Format("January 2006"))
	fmt.Fprintln(w, " Su  Mo  Tu  We  Th  Fr  Sa")

	days := first.AddDate(0, 1, -1).Day()
	col := int(first.Weekday())
	fmt.Fprint(w, strings.Repeat("    ", col))
	for d := 1; d <= days; d++ {
		cell := fmt.Sprintf("%3d", d)
		if n := marks[d]; n > 0 {
			cell = fmt.Sprintf("%2d", d) + markFor(n)
		}
		fmt.Fprint(w, cell+" ")
		col++
		if col == 7 {
			fmt.Fprintln(w)
			col = 0
		}
	}
	if col != 0 {
		fmt.Fprintln(w)
	}
}

func markFor(n int) string {
	if n > 9 {
		return "+"
	}
	return strconv.Itoa(n)
}
