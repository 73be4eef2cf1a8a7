package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"go-keiba-collector/internal/model"
	"go-keiba-collector/internal/yearmonth"
)

// CalendarKey 为日历缓存键（year*100+month 的十进制文本）。
func CalendarKey(year, month int) string { return strconv.Itoa(yearmonth.Join(year, month)) }

// LookupCalendar 查询某年月的开催日历，按日期升序；未抓取时 ok=false。
func (s *SQLite) LookupCalendar(ctx context.Context, year, month int) ([]model.RaceCalendarEntry, bool, error) {
	ok, err := s.fetched(ctx, CacheCalendar, CalendarKey(year, month))
	if err != nil || !ok {
		return nil, false, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, course, url FROM race_calendar
        WHERE year = ? AND month = ? ORDER BY date, rowid`, year, month)
	if err != nil {
		return nil, false, fmt.Errorf("query calendar %d-%02d: %w", year, month, err)
	}
	defer rows.Close()
	out := []model.RaceCalendarEntry{}
	for rows.Next() {
		var e model.RaceCalendarEntry
		var date string
		if err := rows.Scan(&date, &e.Course, &e.URL); err != nil {
			return nil, false, fmt.Errorf("scan calendar: %w", err)
		}
		if e.Date, err = decodeDate(date); err != nil {
			return nil, false, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate calendar: %w", err)
	}
	return out, true, nil
}

// InsertCalendar 在一个事务内写入某年月的全部日历条目及抓取标记。
func (s *SQLite) InsertCalendar(ctx context.Context, year, month int, entries []model.RaceCalendarEntry) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO race_calendar(year, month, date, course, url) VALUES(?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, year, month, encodeDate(e.Date), e.Course, e.URL); err != nil {
				return fmt.Errorf("insert %s: %w", e.URL, err)
			}
		}
		return markFetched(ctx, tx, CacheCalendar, CalendarKey(year, month))
	})
	if err != nil {
		return fmt.Errorf("insert calendar %d-%02d: %w", year, month, err)
	}
	return nil
}

// LookupRaceListing 查询某开催日页的比赛列表，按日期升序。
func (s *SQLite) LookupRaceListing(ctx context.Context, dayURL string) ([]model.RaceInfo, bool, error) {
	ok, err := s.fetched(ctx, CacheRaceListing, dayURL)
	if err != nil || !ok {
		return nil, false, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, course, race_number, race_name, track_type,
        distance, condition, horse_count, url FROM race_listing
        WHERE day_url = ? ORDER BY date, rowid`, dayURL)
	if err != nil {
		return nil, false, fmt.Errorf("query race listing %s: %w", dayURL, err)
	}
	defer rows.Close()
	out := []model.RaceInfo{}
	for rows.Next() {
		var r raceRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, false, fmt.Errorf("scan race listing: %w", err)
		}
		ri, err := r.decode()
		if err != nil {
			return nil, false, err
		}
		out = append(out, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate race listing: %w", err)
	}
	return out, true, nil
}

// InsertRaceListing 在一个事务内写入某开催日的全部比赛。
func (s *SQLite) InsertRaceListing(ctx context.Context, dayURL string, races []model.RaceInfo) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO race_listing(day_url, date, course, race_number,
            race_name, track_type, distance, condition, horse_count, url) VALUES(?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, r := range races {
			args := append([]any{dayURL}, raceArgs(r)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert %s: %w", r.URL, err)
			}
		}
		return markFetched(ctx, tx, CacheRaceListing, dayURL)
	})
	if err != nil {
		return fmt.Errorf("insert race listing %s: %w", dayURL, err)
	}
	return nil
}

// LookupRaceResult 查询某场比赛的结果，出走马按马番升序。
func (s *SQLite) LookupRaceResult(ctx context.Context, raceURL string) (model.RaceResult, bool, error) {
	var res model.RaceResult
	ok, err := s.fetched(ctx, CacheRaceResult, raceURL)
	if err != nil || !ok {
		return res, false, err
	}
	var r raceRow
	err = s.db.QueryRowContext(ctx, `SELECT date, course, race_number, race_name, track_type,
        distance, condition, horse_count, url FROM race_result_race WHERE race_url = ?`, raceURL).Scan(r.dest()...)
	if err != nil {
		return res, false, fmt.Errorf("query race result %s: %w", raceURL, err)
	}
	if res.Race, err = r.decode(); err != nil {
		return res, false, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT horse_order, name, popularity, weight, elapsed_seconds,
        url, payout, number FROM race_result_horse WHERE race_url = ? ORDER BY number, rowid`, raceURL)
	if err != nil {
		return res, false, fmt.Errorf("query race horses %s: %w", raceURL, err)
	}
	defer rows.Close()
	res.Horses = []model.HorseResult{}
	for rows.Next() {
		var h horseRow
		if err := rows.Scan(h.dest()...); err != nil {
			return res, false, fmt.Errorf("scan race horses: %w", err)
		}
		res.Horses = append(res.Horses, h.decode())
	}
	if err := rows.Err(); err != nil {
		return res, false, fmt.Errorf("iterate race horses: %w", err)
	}
	return res, true, nil
}

// InsertRaceResult 在一个事务内写入比赛行、全部出走马行及抓取标记。
func (s *SQLite) InsertRaceResult(ctx context.Context, raceURL string, res model.RaceResult) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		args := append([]any{raceURL}, raceArgs(res.Race)...)
		if _, err := tx.ExecContext(ctx, `INSERT INTO race_result_race(race_url, date, course, race_number,
            race_name, track_type, distance, condition, horse_count, url) VALUES(?,?,?,?,?,?,?,?,?,?)`, args...); err != nil {
			return fmt.Errorf("insert race: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO race_result_horse(race_url, horse_order, name,
            popularity, weight, elapsed_seconds, url, payout, number) VALUES(?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, h := range res.Horses {
			args := append([]any{raceURL}, horseArgs(h)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert horse %s: %w", h.URL, err)
			}
		}
		return markFetched(ctx, tx, CacheRaceResult, raceURL)
	})
	if err != nil {
		return fmt.Errorf("insert race result %s: %w", raceURL, err)
	}
	return nil
}

// LookupHorseHistory 查询某马的出走履历，按日期升序。
func (s *SQLite) LookupHorseHistory(ctx context.Context, horseURL string) ([]model.HorseRace, bool, error) {
	ok, err := s.fetched(ctx, CacheHorseHistory, horseURL)
	if err != nil || !ok {
		return nil, false, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, course, race_number, race_name, track_type,
        distance, condition, horse_count, race_url,
        horse_order, name, popularity, weight, elapsed_seconds, url, payout, number
        FROM horse_history WHERE horse_url = ? ORDER BY date, rowid`, horseURL)
	if err != nil {
		return nil, false, fmt.Errorf("query horse history %s: %w", horseURL, err)
	}
	defer rows.Close()
	out := []model.HorseRace{}
	for rows.Next() {
		var r raceRow
		var h horseRow
		if err := rows.Scan(append(r.dest(), h.dest()...)...); err != nil {
			return nil, false, fmt.Errorf("scan horse history: %w", err)
		}
		ri, err := r.decode()
		if err != nil {
			return nil, false, err
		}
		out = append(out, model.HorseRace{Race: ri, Result: h.decode()})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate horse history: %w", err)
	}
	return out, true, nil
}

// InsertHorseHistory 在一个事务内写入某马的全部履历行及抓取标记。
func (s *SQLite) InsertHorseHistory(ctx context.Context, horseURL string, history []model.HorseRace) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO horse_history(horse_url, date, course, race_number,
            race_name, track_type, distance, condition, horse_count, race_url,
            horse_order, name, popularity, weight, elapsed_seconds, url, payout, number)
            VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, hr := range history {
			args := append([]any{horseURL}, raceArgs(hr.Race)...)
			args = append(args, horseArgs(hr.Result)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert %s: %w", hr.Race.URL, err)
			}
		}
		return markFetched(ctx, tx, CacheHorseHistory, horseURL)
	})
	if err != nil {
		return fmt.Errorf("insert horse history %s: %w", horseURL, err)
	}
	return nil
}
