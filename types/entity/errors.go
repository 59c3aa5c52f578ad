package entity

import "errors"

var ErrEmptyOwner = errors.New("attachment owner_id cannot be empty")
