package gamble

import (
	"errors"

	"zcoin/internal/config"
)

var (
	ErrWagerOutOfRange            = errors.New("wager_out_of_range")
	ErrSessionNotFound            = errors.New("session_not_found")
	ErrSessionExpired             = errors.New("session_expired")
	ErrSessionAlreadySettled      = errors.New("session_already_settled")
	ErrParticipantThresholdNotMet = errors.New("participant_threshold_not_met")
	ErrNotParticipant             = errors.New("not_participant")
	ErrSelfMatch                  = errors.New("self_match")
	ErrWrongGame                  = errors.New("wrong_game")

	// ErrConfigurationInvalid is shared with config so callers can match
	// either package's rejections.
	ErrConfigurationInvalid = config.ErrConfigurationInvalid
)
