package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/velotype/velotype/server/core/rating"
	veloDB "github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/db/iface"
	"github.com/velotype/velotype/server/types"
	"golang.org/x/sync/errgroup"
)

const (
	// statsScanLimit bounds how much history the stats aggregation reads.
	statsScanLimit = 100
	// exportMatchLimit bounds the match history included in a data export.
	exportMatchLimit = 1000
)

type profileResponse struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Created  time.Time       `json:"created"`
	Rating   *ratingView     `json:"rating,omitempty"`
}

type ratingView struct {
	Rating               *int   `json:"rating"`
	CompetitiveRating    *int   `json:"competitiveRating,omitempty"`
	PlacementGamesPlayed int    `json:"placementGamesPlayed"`
	Tier                 string `json:"tier,omitempty"`
}

func ratingViewOf(row *types.Rating) *ratingView {
	v := &ratingView{
		Rating:               row.Rating,
		CompetitiveRating:    row.CompetitiveRating,
		PlacementGamesPlayed: row.PlacementGamesPlayed,
	}
	if row.Rating != nil {
		v.Tier = rating.TierName(rating.TierIndex(*row.Rating))
	}
	return v
}

// loadProfile assembles the external account view: decrypted email, settings
// blob and the ladder row with its tier name. A missing ladder row is not an
// error, the account simply has no rating yet.
func (s *Service) loadProfile(ctx context.Context, db iface.Database, userID string) (*profileResponse, error) {
	user, err := db.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &profileResponse{
		ID:       user.ID,
		Username: user.Username,
		Settings: user.Settings,
		Created:  user.Created,
	}
	if len(user.EmailCipher) > 0 {
		email, err := s.cfg.Auth.DecryptEmail(user.EmailCipher)
		if err != nil {
			log.WithError(err).WithField("userId", userID).Warn("Could not decrypt stored email")
		} else {
			resp.Email = email
		}
	}
	row, err := db.Rating(ctx, userID)
	if err != nil {
		if !errors.Is(err, veloDB.ErrNotFound) {
			return nil, err
		}
		return resp, nil
	}
	resp.Rating = ratingViewOf(row)
	return resp, nil
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	resp, err := s.loadProfile(r.Context(), db, ident.ID)
	if err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "account not found", http.StatusNotFound)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// profileSettings is the full client preference set. PATCH replaces the whole
// blob, so omitted fields reset to their zero values.
type profileSettings struct {
	Theme        string `json:"theme,omitempty"`
	Keymap       string `json:"keymap,omitempty"`
	CaretStyle   string `json:"caretStyle,omitempty"`
	SoundOnPress bool   `json:"soundOnPress,omitempty"`
	LiveWpm      bool   `json:"liveWpm,omitempty"`
	LiveAccuracy bool   `json:"liveAccuracy,omitempty"`
}

type updateProfileRequest struct {
	Settings *profileSettings `json:"settings"`
}

type settingsResponse struct {
	Settings json.RawMessage `json:"settings"`
}

func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req updateProfileRequest
	if err := dec.Decode(&req); err != nil || req.Settings == nil {
		handleError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	for _, v := range []string{req.Settings.Theme, req.Settings.Keymap, req.Settings.CaretStyle} {
		if len(v) > 64 {
			handleError(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	user, err := db.User(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "account not found", http.StatusNotFound)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	blob, err := json.Marshal(req.Settings)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	user.Settings = blob
	if err := db.SaveUser(ctx, user); err != nil {
		log.WithError(err).Error("Could not persist settings")
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &settingsResponse{Settings: user.Settings})
}

// playerStats aggregates the caller's recent completed matches.
type playerStats struct {
	Matches     int     `json:"matches"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	Forfeits    int     `json:"forfeits"`
	WinRate     float64 `json:"winRate"`
	AvgWpm      float64 `json:"avgWpm"`
	BestWpm     float64 `json:"bestWpm"`
	AvgAccuracy float64 `json:"avgAccuracy"`
	DamageDealt int     `json:"damageDealt"`
	DamageTaken int     `json:"damageTaken"`
}

func computeStats(records []*types.MatchRecord, userID string) *playerStats {
	stats := &playerStats{}
	var wpmSum, accSum float64
	var wpmN, accN int
	for _, rec := range records {
		if rec.Match == nil || rec.Match.Status != types.MatchCompleted {
			continue
		}
		self, _ := rec.Player(userID)
		if self == nil {
			continue
		}
		stats.Matches++
		switch self.Result {
		case types.ResultWin:
			stats.Wins++
		case types.ResultLoss:
			stats.Losses++
		case types.ResultDraw:
			stats.Draws++
		}
		if self.Forfeited {
			stats.Forfeits++
		}
		if self.Wpm != nil {
			wpmSum += *self.Wpm
			wpmN++
			if *self.Wpm > stats.BestWpm {
				stats.BestWpm = *self.Wpm
			}
		}
		if self.Accuracy != nil {
			accSum += *self.Accuracy
			accN++
		}
		stats.DamageDealt += self.DamageDealt
		stats.DamageTaken += self.DamageTaken
	}
	if stats.Matches > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Matches)
	}
	if wpmN > 0 {
		stats.AvgWpm = wpmSum / float64(wpmN)
	}
	if accN > 0 {
		stats.AvgAccuracy = accSum / float64(accN)
	}
	return stats
}

func (s *Service) handleProfileStats(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	records, err := db.UserMatches(r.Context(), ident.ID, statsScanLimit)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, computeStats(records, ident.ID))
}

type exportResponse struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Profile     *profileResponse     `json:"profile"`
	Matches     []*types.MatchRecord `json:"matches"`
	DailyScores []*types.DailyScore  `json:"dailyScores"`
}

// handleProfileExport bundles every row the account owns into one download.
// The three reads are independent, so they run as a group.
func (s *Service) handleProfileExport(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	var (
		profile *profileResponse
		records []*types.MatchRecord
		dailies []*types.DailyScore
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		p, err := s.loadProfile(gctx, db, ident.ID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		m, err := db.UserMatches(gctx, ident.ID, exportMatchLimit)
		if err != nil {
			return err
		}
		records = m
		return nil
	})
	g.Go(func() error {
		d, err := db.UserDailyScores(gctx, ident.ID)
		if err != nil {
			return err
		}
		dailies = d
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "account not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("Could not assemble export")
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.MatchRecord{}
	}
	if dailies == nil {
		dailies = []*types.DailyScore{}
	}
	w.Header().Set("Content-Disposition", `attachment; filename="velotype-export.json"`)
	writeJSON(w, http.StatusOK, &exportResponse{
		GeneratedAt: time.Now(),
		Profile:     profile,
		Matches:     records,
		DailyScores: dailies,
	})
}

func (s *Service) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	if err := db.DeleteUser(r.Context(), ident.ID); err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "account not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("Could not erase account")
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.cfg.Auth.Revoke(bearerToken(r)); err != nil {
		log.WithError(err).Warn("Could not revoke token of erased account")
	}
	accountsDeletedTotal.Inc()
	log.WithField("userId", ident.ID).Info("Account erased")
	writeJSON(w, http.StatusNoContent, nil)
}
