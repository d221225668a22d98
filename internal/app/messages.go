package app

import (
	"errors"
	"fmt"

	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/shipping"
)

const (
	msgLoadProductsFailed     = "Gagal memuat produk. Pastikan API inventory tersedia atau periksa koneksi internet."
	msgLoadDestinationsFailed = "Gagal memuat data kota. Periksa koneksi atau coba lagi."
	msgReloaded               = "Data berhasil dimuat ulang."
	msgProductNotFound        = "Produk tidak ditemukan!"
	msgOutOfStock             = "Stok Habis"
	msgDestinationRequired    = "Pilih kota tujuan terlebih dahulu!"
	msgUnknownDestination     = "Kota tujuan tidak tersedia."
	msgCalculateFailed        = "Gagal menghitung ongkir. Periksa koneksi atau coba lagi."
	msgCheckoutDeclined       = "Checkout dibatalkan."
	msgCheckoutFailed         = "Gagal memproses checkout. Periksa koneksi atau coba lagi."
	msgCheckoutDone           = "Checkout berhasil! Sisa stok %s: %d."
	msgInsufficientStock      = "Stok tidak mencukupi. Tersedia %d pcs."
	msgInvalidForm            = "Mohon isi semua field dengan benar!"
	msgProductCreated         = "Produk berhasil ditambahkan!"
	msgProductUpdated         = "Produk berhasil diperbarui!"
	msgCreateFailed           = "Gagal menambahkan produk. Pastikan API tersedia atau periksa koneksi internet."
	msgUpdateFailed           = "Gagal memperbarui produk. Pastikan API tersedia atau periksa koneksi internet."
	msgNoSession              = "Tidak ada sesi pengiriman yang aktif."
	msgUnknownAction          = "Aksi tidak dikenal."
)

func errorNotice(message string) *Notice {
	return &Notice{Level: LevelError, Message: message}
}

func successNotice(message string) *Notice {
	return &Notice{Level: LevelSuccess, Message: message}
}

func infoNotice(message string) *Notice {
	return &Notice{Level: LevelInfo, Message: message}
}

// shippingNotice maps a shipping workflow error onto the message shown to the operator.
// fallback covers remote failures and rejected requests, which are retryable.
func shippingNotice(err error, fallback string) *Notice {
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.Is(err, shipping.ErrDestinationRequired):
		return errorNotice(msgDestinationRequired)
	case errors.Is(err, shipping.ErrOutOfStock):
		return errorNotice(msgOutOfStock)
	case errors.Is(err, shipping.ErrUnknownDestination):
		return errorNotice(msgUnknownDestination)
	case errors.Is(err, shipping.ErrProductMissing):
		return errorNotice(msgProductNotFound)
	case errors.As(err, &insufficient):
		return errorNotice(fmt.Sprintf(msgInsufficientStock, insufficient.Available))
	case errors.Is(err, shipping.ErrNoSession):
		return errorNotice(msgNoSession)
	default:
		return errorNotice(fallback)
	}
}
