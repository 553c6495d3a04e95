package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventDate(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	t.Run("naive forms resolve on the reader's wall clock", func(t *testing.T) {
		for _, in := range []string{"2024-06-01T09:30:00", "2024-06-01T09:30", "2024-06-01T09:30:00.000"} {
			d := ParseEventDate(in)
			require.True(t, d.Valid(), in)
			got, ok := d.In(seoul)
			require.True(t, ok)
			assert.Equal(t, time.Date(2024, 6, 1, 9, 30, 0, 0, seoul), got, in)
			assert.Equal(t, "2024-06-01T09:30:00", d.String())
		}
	})

	t.Run("date only is midnight", func(t *testing.T) {
		d := ParseEventDate("2024-06-01")
		got, ok := d.In(time.UTC)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("instants convert and keep their text", func(t *testing.T) {
		d := ParseEventDate("2024-05-31T15:00:00.000Z")
		require.True(t, d.Valid())
		got, _ := d.In(seoul)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, seoul), got)
		assert.Equal(t, "2024-05-31T15:00:00.000Z", d.String())
	})

	t.Run("garbage is kept verbatim", func(t *testing.T) {
		d := ParseEventDate("next tuesday")
		assert.False(t, d.Valid())
		assert.False(t, d.IsZero())
		_, ok := d.In(time.UTC)
		assert.False(t, ok)
		assert.Equal(t, "next tuesday", d.String())
	})
}

func TestEventDateJSON(t *testing.T) {
	var v struct {
		A EventDate `json:"a"`
		B EventDate `json:"b"`
		C EventDate `json:"c"`
		D EventDate `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-01-02","b":"bogus","c":12345,"d":null}`), &v))
	assert.True(t, v.A.Valid())
	assert.False(t, v.B.Valid())
	assert.False(t, v.C.Valid())
	assert.True(t, v.D.IsZero())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2024-01-02T00:00:00","b":"bogus","c":12345,"d":null}`, string(out))
}

func TestSameDay(t *testing.T) {
	d := ParseEventDate("2024-03-10T23:30:00")
	assert.True(t, d.SameDay(time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)))
	assert.False(t, d.SameDay(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func TestParseClockTime(t *testing.T) {
	c, err := ParseClockTime("9:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", c.String())

	for _, bad := range []string{"", "24:00", "12:60", "1205", "12:5", "ab:cd"} {
		_, err := ParseClockTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestScheduleBuild(t *testing.T) {
	s, errs := ScheduleInput{IsAllDay: true}.Build()
	require.Empty(t, errs)
	assert.Equal(t, AllDay{}, s)

	s, errs = ScheduleInput{StartTime: "09:00", EndTime: "17:30"}.Build()
	require.Empty(t, errs)
	assert.Equal(t, Timed{Start: ClockTime{9, 0}, End: ClockTime{17, 30}}, s)

	_, errs = ScheduleInput{StartTime: "09:00"}.Build()
	require.Len(t, errs, 1)
	assert.Equal(t, "endTime", errs[0].Field)

	_, errs = ScheduleInput{IsAllDay: true, StartTime: "09:00", EndTime: "10:00"}.Build()
	assert.Len(t, errs, 2)
}

func validInput() EventInput {
	return EventInput{
		Title:         "Trip to Busan",
		EventDate:     Date(2024, time.June, 1),
		ScheduleInput: ScheduleInput{IsAllDay: true},
	}
}

func TestEventInputValidate(t *testing.T) {
	require.NoError(t, validInput().Validate())

	in := validInput()
	in.Title = "   "
	in.Normalize()
	in.EventDate = ParseEventDate("soon")
	in.IsAllDay = false
	in.ImageURL = "not a uri"
	in.Recurrence = &Recurrence{Frequency: "HOURLY", ByDay: []int{7}}

	err := in.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, "required", fields["title"])
	assert.Equal(t, "datetime", fields["date"])
	assert.Contains(t, fields, "startTime")
	assert.Contains(t, fields, "endTime")
	assert.Equal(t, "uri", fields["imageUrl"])
	assert.Equal(t, "oneof", fields["frequency"])
	assert.Contains(t, fields, "interval")
	assert.Contains(t, fields, "byDay[0]")
}

func TestTitleLengthIsRejectedNotTruncated(t *testing.T) {
	in := validInput()
	in.Title = strings.Repeat("가", MaxTitleLength)
	require.NoError(t, in.Validate())

	in.Title += "x"
	require.Error(t, in.Validate())
	assert.Len(t, []rune(in.Record().Title), MaxTitleLength+1)
}

func TestRecurrenceNormalizeDefaultsInterval(t *testing.T) {
	in := validInput()
	in.Recurrence = &Recurrence{Frequency: " yearly "}
	in.Normalize()
	require.NoError(t, in.Validate())
	assert.Equal(t, Yearly, in.Recurrence.Frequency)
	assert.Equal(t, 1, in.Recurrence.Interval)
}

func TestPatchApply(t *testing.T) {
	rec := validInput().Record()
	rec.ID = "event_1"
	rec.Description = "ferry at 9"
	rec.Recurrence = &Recurrence{Frequency: Yearly, Interval: 1}

	title := "Trip to Jeju"
	got := Patch{Title: &title}.Apply(rec)
	assert.Equal(t, "Trip to Jeju", got.Title)
	got.Title = rec.Title
	assert.Equal(t, rec, got)

	got = Patch{ClearRecurrence: true, Recurrence: &Recurrence{Frequency: Daily, Interval: 1}}.Apply(rec)
	assert.Nil(t, got.Recurrence)
	assert.NotNil(t, rec.Recurrence)

	got = Patch{Schedule: &ScheduleInput{StartTime: "10:00", EndTime: "11:00"}}.Apply(rec)
	start, end := got.Times()
	assert.Equal(t, "10:00", start)
	assert.Equal(t, "11:00", end)
	assert.False(t, got.IsAllDay())
}

func TestPatchValidate(t *testing.T) {
	empty := ""
	require.NoError(t, Patch{}.Validate())
	assert.True(t, Patch{}.Empty())

	err := Patch{Title: &empty}.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Fields[0].Field)

	bad := ParseEventDate("13/45/2024")
	require.Error(t, Patch{EventDate: &bad}.Validate())
	require.Error(t, Patch{Schedule: &ScheduleInput{}}.Validate())
}

func TestPatchAcceptsFlatScheduleKeys(t *testing.T) {
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"X","isAllDay":false,"startTime":"08:00","endTime":"09:00"}`), &p))
	require.NotNil(t, p.Title)
	require.NotNil(t, p.Schedule)
	assert.Equal(t, ScheduleInput{StartTime: "08:00", EndTime: "09:00"}, *p.Schedule)

	p = Patch{}
	require.NoError(t, json.Unmarshal([]byte(`{"location":"Seoul"}`), &p))
	assert.Nil(t, p.Schedule)
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "short", DisplayTitle("short", DisplayTitleLimit))
	assert.Equal(t, "abcde...", DisplayTitle("abcdefgh", 5))
}
