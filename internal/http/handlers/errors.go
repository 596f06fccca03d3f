package handlers

import "fmt"

func errMissing(what string) error { return fmt.Errorf("missing %s", what) }

func errNotAvailable(storeID, sku string) error {
	return fmt.Errorf("no active model or sales history for %s/%s", storeID, sku)
}
