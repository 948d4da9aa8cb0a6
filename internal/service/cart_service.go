package service

import (
	"strings"

	"github.com/emarket-next/internal/logger"
	"github.com/emarket-next/internal/models"
	"github.com/emarket-next/internal/repository"

	"gorm.io/gorm"
)

// CartIdentity 购物车归属：登录用户或匿名会话，二者取其一，用户优先
type CartIdentity struct {
	UserID     uint
	SessionKey string
}

// Empty 是否缺少归属信息
func (i CartIdentity) Empty() bool {
	return i.UserID == 0 && strings.TrimSpace(i.SessionKey) == ""
}

// CartDetail 购物车详情
type CartDetail struct {
	Cart      *models.Cart `json:"cart"`
	Subtotal  models.Money `json:"subtotal"`
	ItemCount int          `json:"item_count"`
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, variantRepo repository.VariantRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
	}
}

// GetOrCreateCart 获取或创建购物车，并发插入由唯一索引兜底后重读
func (s *CartService) GetOrCreateCart(identity CartIdentity) (*models.Cart, error) {
	return getOrCreateCart(s.cartRepo, identity)
}

func getOrCreateCart(repo repository.CartRepository, identity CartIdentity) (*models.Cart, error) {
	if identity.Empty() {
		return nil, ErrCartIdentityRequired
	}
	cart, err := findCart(repo, identity)
	if err != nil || cart != nil {
		return cart, err
	}

	cart = &models.Cart{}
	if identity.UserID > 0 {
		userID := identity.UserID
		cart.UserID = &userID
	} else {
		sessionKey := strings.TrimSpace(identity.SessionKey)
		cart.SessionKey = &sessionKey
	}
	if createErr := repo.Create(cart); createErr != nil {
		existing, err := findCart(repo, identity)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, createErr
		}
		return existing, nil
	}
	return cart, nil
}

func findCart(repo repository.CartRepository, identity CartIdentity) (*models.Cart, error) {
	if identity.UserID > 0 {
		return repo.GetByUser(identity.UserID)
	}
	sessionKey := strings.TrimSpace(identity.SessionKey)
	if sessionKey == "" {
		return nil, nil
	}
	return repo.GetBySession(sessionKey)
}

// FindCartWithItems 按归属查找购物车（不创建），含商品项
func (s *CartService) FindCartWithItems(identity CartIdentity) (*models.Cart, error) {
	if identity.Empty() {
		return nil, ErrCartIdentityRequired
	}
	cart, err := findCart(s.cartRepo, identity)
	if err != nil || cart == nil {
		return nil, err
	}
	return s.cartRepo.GetWithItems(cart.ID)
}

// AddItem 加入购物车，同规格数量累加，累计超出库存时拒绝且不改动购物车
func (s *CartService) AddItem(cart *models.Cart, variantID uint, quantity int) (*models.CartItem, error) {
	if cart == nil || cart.ID == 0 {
		return nil, ErrCartIdentityRequired
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.loadVariant(variantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cartRepo.GetItemByVariant(cart.ID, variantID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if quantity > variant.Stock {
			return nil, ErrOutOfStock
		}
		item := &models.CartItem{CartID: cart.ID, VariantID: variantID, Quantity: quantity}
		if createErr := s.cartRepo.CreateItem(item); createErr != nil {
			existing, err = s.cartRepo.GetItemByVariant(cart.ID, variantID)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				return nil, createErr
			}
		} else {
			item.Variant = variant
			return item, nil
		}
	}

	total := existing.Quantity + quantity
	if total > variant.Stock {
		return nil, ErrOutOfStock
	}
	if err := s.cartRepo.UpdateItemQuantity(cart.ID, existing.ID, total); err != nil {
		return nil, err
	}
	existing.Quantity = total
	existing.Variant = variant
	return existing, nil
}

// UpdateQuantity 修改数量，商品项必须属于该购物车
func (s *CartService) UpdateQuantity(cart *models.Cart, itemID uint, quantity int) (*models.CartItem, error) {
	if cart == nil || cart.ID == 0 {
		return nil, ErrCartIdentityRequired
	}
	item, err := s.cartRepo.GetItem(cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.loadVariant(item.VariantID)
	if err != nil {
		return nil, err
	}
	if quantity > variant.Stock {
		return nil, ErrOutOfStock
	}
	if err := s.cartRepo.UpdateItemQuantity(cart.ID, item.ID, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity
	item.Variant = variant
	return item, nil
}

// RemoveItem 删除商品项，商品项必须属于该购物车
func (s *CartService) RemoveItem(cart *models.Cart, itemID uint) error {
	if cart == nil || cart.ID == 0 {
		return ErrCartIdentityRequired
	}
	affected, err := s.cartRepo.DeleteItem(cart.ID, itemID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ComputeSubtotal 计算小计，要求商品项已加载规格
func (s *CartService) ComputeSubtotal(cart *models.Cart) models.Money {
	return cart.Subtotal()
}

// GetCartDetail 获取（必要时创建）购物车详情
func (s *CartService) GetCartDetail(identity CartIdentity) (*CartDetail, error) {
	cart, err := s.GetOrCreateCart(identity)
	if err != nil {
		return nil, err
	}
	full, err := s.cartRepo.GetWithItems(cart.ID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, ErrNotFound
	}
	count := 0
	for _, item := range full.Items {
		count += item.Quantity
	}
	return &CartDetail{
		Cart:      full,
		Subtotal:  full.Subtotal(),
		ItemCount: count,
	}, nil
}

// MergeGuestCart 登录后将匿名购物车并入用户购物车，单项数量不超过库存
func (s *CartService) MergeGuestCart(userID uint, sessionKey string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	if userID == 0 || sessionKey == "" {
		return nil
	}
	merged := 0
	skipped := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := repository.NewCartRepository(tx)
		guest, err := cartRepo.GetBySession(sessionKey)
		if err != nil || guest == nil {
			return err
		}
		guest, err = cartRepo.GetWithItems(guest.ID)
		if err != nil || guest == nil || len(guest.Items) == 0 {
			return err
		}
		// 待回调的流水仍指向游客购物车，合并后清空会让支付成功的回调找不到商品
		open, err := repository.NewPaymentTransactionRepository(tx).CountOpenByCart(guest.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			skipped = true
			return nil
		}
		userCart, err := getOrCreateCart(cartRepo, CartIdentity{UserID: userID})
		if err != nil {
			return err
		}
		for _, line := range guest.Items {
			if line.Variant == nil || line.Variant.Stock <= 0 {
				continue
			}
			existing, err := cartRepo.GetItemByVariant(userCart.ID, line.VariantID)
			if err != nil {
				return err
			}
			if existing != nil {
				quantity := min(existing.Quantity+line.Quantity, line.Variant.Stock)
				if err := cartRepo.UpdateItemQuantity(userCart.ID, existing.ID, quantity); err != nil {
					return err
				}
			} else {
				quantity := min(line.Quantity, line.Variant.Stock)
				if err := cartRepo.CreateItem(&models.CartItem{CartID: userCart.ID, VariantID: line.VariantID, Quantity: quantity}); err != nil {
					return err
				}
			}
			merged++
		}
		return cartRepo.ClearItems(guest.ID)
	})
	if err != nil {
		logger.Warnw("cart_merge_failed", "user_id", userID, "error", err)
		return err
	}
	if skipped {
		logger.Infow("cart_merge_skipped_pending_payment", "user_id", userID)
		return nil
	}
	if merged > 0 {
		logger.Infow("cart_merged", "user_id", userID, "lines", merged)
	}
	return nil
}

func (s *CartService) loadVariant(variantID uint) (*models.ProductVariant, error) {
	if variantID == 0 {
		return nil, ErrVariantNotFound
	}
	variant, err := s.variantRepo.GetByID(variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}
