package url

import (
	"fmt"
	"os"
)

func base() string {
	return fmt.Sprintf("http://localhost:%s/api/v1", os.Getenv("TEST_SERVER_PORT"))
}

func CreateClient() string {
	return base() + "/clients/"
}

func GetClient(id string) string {
	return fmt.Sprintf("%s/clients/%s/", base(), id)
}

func ClientHistory(id string) string {
	return fmt.Sprintf("%s/clients/%s/history/", base(), id)
}

func ClientAction(id, action string) string {
	return fmt.Sprintf("%s/clients/%s/actions/?action=%s", base(), id, action)
}

func Statistics() string {
	return base() + "/clients/statistics/"
}

func Jobs() string {
	return base() + "/automation/jobs/"
}
