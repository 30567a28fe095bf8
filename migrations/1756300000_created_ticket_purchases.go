package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("ticket_purchases")

		collection.Fields.Add(
			&core.TextField{
				Name:     "reference_number",
				Required: true,
			},
			&core.TextField{
				Name:     "ticket_type",
				Required: true,
			},
			&core.NumberField{
				Name:     "quantity",
				Required: true,
				OnlyInt:  true,
			},
			&core.NumberField{
				Name:     "total_amount",
				Required: true,
			},
			&core.TextField{
				Name:     "currency",
				Required: true,
			},
			&core.SelectField{
				Name:      "payment_status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "completed", "failed"},
			},
			&core.TextField{
				Name: "payment_method",
			},
			&core.TextField{
				Name: "transaction_id",
			},
			&core.TextField{
				Name: "payment_account",
			},
			&core.TextField{
				Name: "confirmation_code",
			},
			&core.DateField{
				Name: "payment_date",
			},
			&core.TextField{
				Name:     "buyer_name",
				Required: true,
			},
			&core.EmailField{
				Name:     "buyer_email",
				Required: true,
			},
			&core.TextField{
				Name: "buyer_phone",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		// Merchant references correlate gateway callbacks with purchases;
		// duplicates would make reconciliation ambiguous.
		collection.AddIndex("idx_ticket_purchases_reference", true, "reference_number", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_purchases")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
