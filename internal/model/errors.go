package model

import "errors"

var ErrorNotFound = errors.New("not found")
